package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/avsync/internal/action"
	"github.com/dgnsrekt/avsync/internal/coordinator"
	"github.com/dgnsrekt/avsync/internal/types"
)

type stubService struct {
	mode     string
	lastMsg  types.Message
	lastFrom types.Sender
	reply    any
	err      error
	opened   []string
}

func (s *stubService) Dispatch(ctx context.Context, msg types.Message, sender types.Sender) (any, error) {
	s.lastMsg, s.lastFrom = msg, sender
	return s.reply, s.err
}

func (s *stubService) Toggle(ctx context.Context) error {
	if s.mode == "enabled" {
		s.mode = "disabled"
	} else {
		s.mode = "enabled"
	}
	return s.err
}

func (s *stubService) ActionClicked(ctx context.Context) error { return s.Toggle(ctx) }

func (s *stubService) Snapshot() coordinator.Snapshot {
	return coordinator.Snapshot{Mode: s.mode, ActiveResources: 2, ResumePoints: 1}
}

func (s *stubService) Links() []string { return []string{"donate", "support"} }

func (s *stubService) OpenLink(ctx context.Context, name string) error {
	if name != "support" && name != "donate" {
		return types.NewError(types.CodeValidation, "unknown link", nil)
	}
	s.opened = append(s.opened, name)
	return nil
}

type stubTabs map[types.TabID]types.Tab

func (s stubTabs) Tab(id types.TabID) (types.Tab, bool) {
	tab, ok := s[id]
	return tab, ok
}

func newTestServer(svc *stubService) http.Handler {
	toolbar := action.NewToolbar(nil)
	toolbar.SetTitle("YouTube Audio/Video Sync - Enabled")
	return NewServer(Deps{
		Service: svc,
		Tabs:    stubTabs{3: {ID: 3, URL: "https://www.youtube.com/watch?v=abc"}},
		Toolbar: toolbar,
		Version: "test",
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDocsListsOperations(t *testing.T) {
	w := do(t, newTestServer(&stubService{}), http.MethodGet, "/docs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{"A/V Sync Coordinator API", "/api/v1/messages", "Deliver a message to the coordinator", "/api/v1/links/{name}"} {
		if !strings.Contains(body, want) {
			t.Fatalf("docs missing %q", want)
		}
	}
	if strings.Contains(body, "/api/v1/events") {
		t.Fatal("docs link the event stream without a broker")
	}
}

func TestMessageFromTab(t *testing.T) {
	svc := &stubService{reply: types.ResumePoint{Time: 12.5, URL: "https://www.youtube.com/watch?v=abc"}}
	h := newTestServer(svc)

	w := do(t, h, http.MethodPost, "/api/v1/messages", `{"tab_id":3,"message":"getCurrentTimeBeforeToggle"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.lastMsg.Message != types.KindGetCurrentTimeBeforeToggle {
		t.Fatalf("dispatched kind = %q", svc.lastMsg.Message)
	}
	if svc.lastFrom.Tab == nil || svc.lastFrom.Tab.ID != 3 {
		t.Fatalf("sender = %+v; want tab 3", svc.lastFrom)
	}

	var out struct {
		Response types.ResumePoint `json:"response"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Response.Time != 12.5 {
		t.Fatalf("response = %+v", out.Response)
	}
}

func TestMessageWithoutTab(t *testing.T) {
	svc := &stubService{}
	w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/messages", `{"message":"processSyncChange","syncValue":-80}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.lastFrom.Tab != nil {
		t.Fatalf("sender = %+v; want no tab", svc.lastFrom)
	}
	if svc.lastMsg.SyncValue == nil || *svc.lastMsg.SyncValue != -80 {
		t.Fatalf("syncValue = %v", svc.lastMsg.SyncValue)
	}
}

func TestMessageErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{name: "unknown tab", body: `{"tab_id":99,"message":"setWaitingBadge"}`, status: http.StatusNotFound},
		{name: "validation", err: types.NewError(types.CodeValidation, "syncValue is required", nil), body: `{"message":"processSyncChange"}`, status: http.StatusBadRequest},
		{name: "storage", err: types.NewError(types.CodeStorage, "persist failed", nil), body: `{"message":"processSyncChange","syncValue":1}`, status: http.StatusInternalServerError},
		{name: "cdp", err: types.NewError(types.CodeCDPUnavailable, "browser gone", nil), body: `{"message":"toggleExtension"}`, status: http.StatusBadGateway},
		{name: "missing kind", body: `{}`, status: http.StatusUnprocessableEntity},
		{name: "outbound kind", body: `{"message":"url-changed"}`, status: http.StatusBadRequest},
		{name: "unknown kind", body: `{"message":"reticulateSplines"}`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{err: tt.err}
			w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/messages", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.status, w.Body.String())
			}
			if tt.status == http.StatusBadRequest && tt.err == nil && svc.lastMsg.Message != "" {
				t.Fatalf("Dispatch() called with %s; want rejected before dispatch", svc.lastMsg.Message)
			}
		})
	}
}

func TestToggleAndState(t *testing.T) {
	svc := &stubService{mode: "disabled"}
	h := newTestServer(svc)

	w := do(t, h, http.MethodPost, "/api/v1/toggle", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"mode":"enabled"`) {
		t.Fatalf("toggle = %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, "/api/v1/action/click", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"mode":"disabled"`) {
		t.Fatalf("click = %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/v1/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("state status = %d", w.Code)
	}
	var st struct {
		Mode            string       `json:"mode"`
		ActiveResources int          `json:"active_resources"`
		Toolbar         action.State `json:"toolbar"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Mode != "disabled" || st.ActiveResources != 2 || st.Toolbar.Title != "YouTube Audio/Video Sync - Enabled" {
		t.Fatalf("state = %+v", st)
	}
}

func TestLinks(t *testing.T) {
	svc := &stubService{}
	h := newTestServer(svc)

	w := do(t, h, http.MethodGet, "/api/v1/links", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"support"`) {
		t.Fatalf("links = %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, "/api/v1/links/support", "")
	if w.Code != http.StatusOK || len(svc.opened) != 1 {
		t.Fatalf("open support = %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, "/api/v1/links/nope", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("open unknown status = %d; want 400", w.Code)
	}
}

func TestHealth(t *testing.T) {
	w := do(t, newTestServer(&stubService{}), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
}
