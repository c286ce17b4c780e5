package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quailyquaily/taskmorph/assistant"
	"github.com/quailyquaily/taskmorph/auth"
	"github.com/quailyquaily/taskmorph/db"
	"github.com/quailyquaily/taskmorph/db/models"
	"github.com/quailyquaily/taskmorph/llm"
	"github.com/quailyquaily/taskmorph/store"
)

const testBotToken = "12345:TEST_TOKEN"

type recordedMessage struct {
	ChatID int64
	Text   string
}

type fakeSender struct {
	sent []recordedMessage
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text, _ string) error {
	f.sent = append(f.sent, recordedMessage{ChatID: chatID, Text: text})
	return nil
}

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Chat(_ context.Context, _ llm.Request) (llm.Result, error) {
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.reply}, nil
}

func newTestServer(t *testing.T, allowAnonymous bool) (*Server, *store.Store, *fakeSender) {
	t.Helper()
	cfg := db.DefaultConfig()
	cfg.DSN = ":memory:"
	gdb, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	st := store.New(gdb)

	sender := &fakeSender{}
	srv := &Server{
		Store:  st,
		Issuer: auth.NewIssuer("test-secret", 0),
		Assistant: &assistant.Dispatcher{
			Log:      st,
			Tasks:    st,
			Settings: st,
			NewLLM:   func(string) llm.Client { return &fakeLLM{reply: "готово"} },
			Config:   assistant.DefaultConfig(),
		},
		Sender:         sender,
		BotToken:       testBotToken,
		AllowAnonymous: allowAnonymous,
	}
	return srv, st, sender
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func issueToken(t *testing.T, srv *Server, userID int64) string {
	t.Helper()
	token, err := srv.Issuer.Issue(map[string]any{"id": userID, "first_name": "Test"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func TestAuthTelegram(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	h := srv.Handler()

	initData := signedInitData(t, map[string]string{
		"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
		"user":      `{"id":42,"first_name":"Ann","username":"ann"}`,
	})

	w := do(t, h, http.MethodPost, "/auth/telegram", "", map[string]string{"init_data": initData})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string         `json:"access_token"`
		TokenType   string         `json:"token_type"`
		User        map[string]any `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", resp.TokenType)
	}
	if resp.User["username"] != "ann" {
		t.Errorf("user = %v", resp.User)
	}

	// the issued token must be accepted by the protected routes
	me := do(t, h, http.MethodGet, "/users/me", resp.AccessToken, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("GET /users/me status = %d", me.Code)
	}
}

func TestAuthTelegramRejectsTamperedPayload(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	h := srv.Handler()

	initData := signedInitData(t, map[string]string{
		"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
		"user":      `{"id":42,"first_name":"Ann"}`,
	})
	tampered := strings.Replace(initData, "Ann", "Eve", 1)

	w := do(t, h, http.MethodPost, "/auth/telegram", "", map[string]string{"init_data": tampered})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthTelegramRejectsStalePayload(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	h := srv.Handler()

	initData := signedInitData(t, map[string]string{
		"auth_date": fmt.Sprintf("%d", time.Now().Add(-25*time.Hour).Unix()),
		"user":      `{"id":42,"first_name":"Ann"}`,
	})

	w := do(t, h, http.MethodPost, "/auth/telegram", "", map[string]string{"init_data": initData})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	h := srv.Handler()

	if w := do(t, h, http.MethodGet, "/tasks", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("GET /tasks without token: status = %d, want 401", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET /healthz: status = %d, want 200", w.Code)
	}
}

func TestAnonymousModeAllowsAccess(t *testing.T) {
	srv, _, _ := newTestServer(t, true)
	h := srv.Handler()

	if w := do(t, h, http.MethodGet, "/tasks", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET /tasks anonymous: status = %d, want 200", w.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	h := srv.Handler()
	token := issueToken(t, srv, 7)

	created := do(t, h, http.MethodPost, "/tasks", token, map[string]any{
		"title":    "write report",
		"priority": "high",
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", created.Code, created.Body.String())
	}
	var task struct {
		ID      uint   `json:"id"`
		OwnerID *int64 `json:"owner_id"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(created.Body.Bytes(), &task); err != nil {
		t.Fatalf("decoding task: %v", err)
	}
	if task.OwnerID == nil || *task.OwnerID != 7 {
		t.Errorf("owner_id = %v, want 7", task.OwnerID)
	}

	path := fmt.Sprintf("/tasks/%d", task.ID)
	updated := do(t, h, http.MethodPut, path, token, map[string]any{"title": "write the report"})
	if updated.Code != http.StatusOK {
		t.Fatalf("update status = %d", updated.Code)
	}

	got := do(t, h, http.MethodGet, path, token, nil)
	if got.Code != http.StatusOK || !strings.Contains(got.Body.String(), "write the report") {
		t.Fatalf("get status = %d, body %s", got.Code, got.Body.String())
	}

	if w := do(t, h, http.MethodDelete, path, token, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, path, token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", w.Code)
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	h := srv.Handler()
	token := issueToken(t, srv, 7)

	w := do(t, h, http.MethodPost, "/tasks", token, map[string]any{"title": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateEventRequiresWindow(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	h := srv.Handler()
	token := issueToken(t, srv, 7)

	w := do(t, h, http.MethodPost, "/events", token, map[string]any{"title": "standup"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	w = do(t, h, http.MethodPost, "/events", token, map[string]any{
		"title":       "standup",
		"event_start": start.Format(time.RFC3339),
		"event_end":   end.Format(time.RFC3339),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"kind":"event"`) {
		t.Errorf("body = %s, want kind=event", w.Body.String())
	}
}

func TestAiSettingsMasksKey(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	h := srv.Handler()
	token := issueToken(t, srv, 7)

	w := do(t, h, http.MethodPut, "/settings/ai", token, map[string]any{
		"openai_api_key": "sk-secret",
		"openai_model":   "gpt-4o-mini",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "sk-secret") {
		t.Fatalf("response leaks the api key: %s", w.Body.String())
	}

	got := do(t, h, http.MethodGet, "/settings/ai", token, nil)
	var resp aiSettingsResponse
	if err := json.Unmarshal(got.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.HasAPIKey || resp.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestUserSettingsPartialUpdate(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	h := srv.Handler()
	token := issueToken(t, srv, 7)

	w := do(t, h, http.MethodPut, "/settings/me", token, map[string]any{"hours_fri": 4})
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		HoursMon int `json:"hours_mon"`
		HoursFri int `json:"hours_fri"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.HoursFri != 4 || resp.HoursMon != 9 {
		t.Errorf("resp = %+v, want fri 4 and untouched mon 9", resp)
	}

	bad := do(t, h, http.MethodPut, "/settings/me", token, map[string]any{"hours_mon": 25})
	if bad.Code != http.StatusBadRequest {
		t.Errorf("out-of-range hours: status = %d, want 400", bad.Code)
	}
}

func TestStatsSummary(t *testing.T) {
	srv, st, _ := newTestServer(t, false)
	h := srv.Handler()
	token := issueToken(t, srv, 7)

	owner := int64(7)
	past := time.Now().Add(-time.Hour)
	for _, fixture := range []struct {
		title    string
		deadline *time.Time
	}{
		{"overdue", &past},
		{"open", nil},
	} {
		task := models.Task{OwnerID: &owner, Title: fixture.title, Deadline: fixture.deadline}
		if err := st.CreateTask(context.Background(), &task); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}

	w := do(t, h, http.MethodGet, "/stats/summary", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["total"] != 2 || resp["overdue"] != 1 {
		t.Errorf("summary = %v, want total 2 overdue 1", resp)
	}
}
