package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"spike_backend/internal/scheduler"
)

type stubTasks struct {
	recounts []scheduler.InteractionRecountPayload
	err      error
}

func (s *stubTasks) EnqueueInteractionRecount(_ context.Context, payload scheduler.InteractionRecountPayload) error {
	if s.err != nil {
		return s.err
	}
	s.recounts = append(s.recounts, payload)
	return nil
}

func TestClientRecountQueuesTask(t *testing.T) {
	m, _ := testModule(t, testPortalConfig())
	tasks := &stubTasks{}
	m.tasks = tasks
	engine := gin.New()
	m.RegisterRoutes(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/advisor/api/clients/cli-9/recount", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if len(tasks.recounts) != 1 {
		t.Fatalf("recounts = %d, want 1", len(tasks.recounts))
	}
	got := tasks.recounts[0]
	if got.AdvisorID != "adv-1" || got.ClientID != "cli-9" {
		t.Fatalf("payload = %+v", got)
	}

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/advisor/api/clients/cli-9/recount?advisorId=adv-2", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("explicit advisor: status = %d, want 202", w.Code)
	}
	if got := tasks.recounts[1]; got.AdvisorID != "adv-2" {
		t.Fatalf("explicit advisor: payload = %+v", got)
	}
}

func TestClientRecountWithoutQueue(t *testing.T) {
	m, _ := testModule(t, testPortalConfig())
	engine := gin.New()
	m.RegisterRoutes(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/advisor/api/clients/cli-9/recount", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestTraceFeedbackRejectsInvalidPayload(t *testing.T) {
	m, _ := testModule(t, testPortalConfig())
	engine := gin.New()
	m.RegisterRoutes(engine)

	cases := []struct {
		name string
		body string
	}{
		{"unknown type", `{"responseId":"res-1","feedbackType":"great","feedbackReason":"other","feedbackSource":"advisor"}`},
		{"unknown reason", `{"responseId":"res-1","feedbackType":"helpful","feedbackReason":"vibes","feedbackSource":"advisor"}`},
		{"missing responseId", `{"feedbackType":"helpful","feedbackReason":"other","feedbackSource":"advisor"}`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/advisor/api/traces/req-1/feedback", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, w.Code)
		}
	}
}
