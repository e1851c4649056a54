package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/calque-ai/medrag/pkg/middleware/memory"
	"github.com/calque-ai/medrag/pkg/rag"
)

type fakeAnswerer struct {
	mu    sync.Mutex
	asked []string
}

func (f *fakeAnswerer) Ask(_ context.Context, sessionID, question string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, sessionID+"|"+question)
	return "đáp: " + question
}

type fakeSessions struct {
	history map[string][]memory.Message
	err     error
	cleared []string
}

func (f *fakeSessions) History(_ context.Context, id string) ([]memory.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history[id], nil
}

func (f *fakeSessions) Clear(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.cleared = append(f.cleared, id)
	return nil
}

func newTestServer(sessions *fakeSessions) (*Server, *fakeAnswerer) {
	ans := &fakeAnswerer{}
	s := New(ans, sessions,
		WithSessionIDs(func() string { return "new-session" }),
		WithHealth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })),
		WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("medrag_requests_total 1")) })),
	)
	return s, ans
}

func TestChat(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantSession string
		wantWelcome bool
		wantAsked   string
	}{
		{
			name:        "new session",
			body:        `{"question":"Sốt là gì?"}`,
			wantStatus:  http.StatusOK,
			wantSession: "new-session",
			wantWelcome: true,
			wantAsked:   "new-session|Sốt là gì?",
		},
		{
			name:        "existing session",
			body:        `{"session_id":"abc","question":"Ho kéo dài?"}`,
			wantStatus:  http.StatusOK,
			wantSession: "abc",
			wantAsked:   "abc|Ho kéo dài?",
		},
		{
			name:        "blank session id starts a new one",
			body:        `{"session_id":"  ","question":"x"}`,
			wantStatus:  http.StatusOK,
			wantSession: "new-session",
			wantWelcome: true,
			wantAsked:   "new-session|x",
		},
		{
			name:       "invalid json",
			body:       `{"question":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "body too large",
			body:       `{"question":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ans := newTestServer(&fakeSessions{})
			req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantStatus != http.StatusOK {
				if len(ans.asked) != 0 {
					t.Errorf("pipeline called on a bad request")
				}
				return
			}

			var resp ChatResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.SessionID != tt.wantSession {
				t.Errorf("session = %q, want %q", resp.SessionID, tt.wantSession)
			}
			if (resp.Welcome == rag.Welcome) != tt.wantWelcome {
				t.Errorf("welcome = %q", resp.Welcome)
			}
			if len(ans.asked) != 1 || ans.asked[0] != tt.wantAsked {
				t.Errorf("asked = %v, want %q", ans.asked, tt.wantAsked)
			}
			if !strings.HasPrefix(resp.Answer, "đáp: ") {
				t.Errorf("answer = %q", resp.Answer)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sessions := &fakeSessions{history: map[string][]memory.Message{
		"abc": {
			{Role: memory.RoleUser, Content: "hỏi", Time: at},
			{Role: memory.RoleAssistant, Content: "đáp", Time: at},
		},
	}}
	s, _ := newTestServer(sessions)

	t.Run("known session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/abc/history", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp HistoryResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.SessionID != "abc" || len(resp.Messages) != 2 || resp.Messages[1].Content != "đáp" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("unknown session is empty, not null", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/nope/history", nil))
		if !strings.Contains(rec.Body.String(), `"messages":[]`) {
			t.Errorf("body = %s", rec.Body)
		}
	})
}

func TestClear(t *testing.T) {
	sessions := &fakeSessions{}
	s, _ := newTestServer(sessions)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/abc", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sessions.cleared) != 1 || sessions.cleared[0] != "abc" {
		t.Errorf("cleared = %v", sessions.cleared)
	}
}

func TestSessionStoreFailure(t *testing.T) {
	s, _ := newTestServer(&fakeSessions{err: errors.New("redis: connection refused")})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/sessions/abc/history", nil),
		httptest.NewRequest(http.MethodDelete, "/v1/sessions/abc", nil),
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d", req.Method, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "redis") {
			t.Errorf("%s leaked backend error: %s", req.Method, rec.Body)
		}
	}
}

func TestAuxiliaryRoutes(t *testing.T) {
	s, _ := newTestServer(&fakeSessions{})

	tests := []struct {
		path string
		want string
	}{
		{"/", "Chào bạn!"},
		{"/healthz", "ok"},
		{"/metrics", "medrag_requests_total"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("GET %s = %d %s", tt.path, rec.Code, rec.Body)
			}
		})
	}

	bare := New(&fakeAnswerer{}, &fakeSessions{})
	rec := httptest.NewRecorder()
	bare.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/metrics without a handler = %d, want 404", rec.Code)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second, time.Second, time.Second)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
