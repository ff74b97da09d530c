package profiles

import "testing"

func TestNormalizeWeekdays(t *testing.T) {
	days, err := normalizeWeekdays([]string{"monday", "TUE", "Wed"})
	if err != nil {
		t.Fatalf("normalizeWeekdays: %v", err)
	}
	want := []string{"Mon", "Tue", "Wed"}
	for i, d := range want {
		if days[i] != d {
			t.Fatalf("days = %v, want %v", days, want)
		}
	}

	if _, err := normalizeWeekdays([]string{"Funday"}); err == nil {
		t.Fatal("unknown weekday should fail")
	}

	days, err = normalizeWeekdays(nil)
	if err != nil || days != nil {
		t.Fatalf("empty input: days=%v err=%v", days, err)
	}
}

func TestEffectiveAdvisingDaysWithoutPolicy(t *testing.T) {
	svc := NewService(nil)
	advisor := Advisor{AdvisingWeekdays: []string{"Mon", "Fri"}}

	// Client override wins over everything.
	client := &Client{AdvisingOverride: []string{"Tue"}}
	days := svc.EffectiveAdvisingDays(t.Context(), advisor, client)
	if len(days) != 1 || days[0] != "Tue" {
		t.Fatalf("override days = %v", days)
	}

	// No override and no policy falls through to the advisor default.
	days = svc.EffectiveAdvisingDays(t.Context(), advisor, nil)
	if len(days) != 2 || days[0] != "Mon" || days[1] != "Fri" {
		t.Fatalf("default days = %v", days)
	}
}
