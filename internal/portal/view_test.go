package portal

import (
	"bytes"
	"strings"
	"testing"
)

func TestAvailabilityTemplateRenders(t *testing.T) {
	view := availabilityView{
		AdvisorName: "Jordan Reyes",
		ClientName:  "Dana",
		WeekLabel:   "Week of March 2, 2026",
		Timezone:    "America/Los_Angeles",
		SlotMinutes: 30,
		Token:       "TESTTOKEN1234567",
		DayLabels:   []string{"Tue 03/03"},
		Rows: []viewRow{{
			Label: "9:00 AM",
			Cells: []viewCell{{Render: true, Rowspan: 1, Class: "open fits"}},
		}},
		PrevOffset: -1,
		NextOffset: 1,
		HasPrev:    true,
		HasNext:    true,
	}

	var buf bytes.Buffer
	if err := availabilityTmpl.Execute(&buf, view); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	html := buf.String()

	if !strings.Contains(html, "<title>Availability - Jordan Reyes</title>") {
		t.Fatal("title missing advisor name")
	}
	if !strings.Contains(html, "Prepared for Dana") {
		t.Fatal("client name missing")
	}
	if !strings.Contains(html, `class="open fits"`) {
		t.Fatal("cell class missing")
	}
	if !strings.Contains(html, "?t=TESTTOKEN1234567&amp;weekOffset=1") {
		t.Fatal("next week link missing token or offset")
	}
}
