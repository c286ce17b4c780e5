package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/quailyquaily/taskmorph/db/models"
	"github.com/quailyquaily/taskmorph/llm"
	"github.com/quailyquaily/taskmorph/store"
)

type fakeLog struct {
	messages map[int64][]models.ChatMessage
}

func newFakeLog() *fakeLog {
	return &fakeLog{messages: map[int64][]models.ChatMessage{}}
}

func (f *fakeLog) AppendMessage(_ context.Context, ownerID int64, role, content string) error {
	f.messages[ownerID] = append(f.messages[ownerID], models.ChatMessage{OwnerID: ownerID, Role: role, Content: content})
	return nil
}

func (f *fakeLog) ListMessages(_ context.Context, ownerID int64) ([]models.ChatMessage, error) {
	return f.messages[ownerID], nil
}

func (f *fakeLog) DeleteMessages(_ context.Context, ownerID int64) (int64, error) {
	n := int64(len(f.messages[ownerID]))
	delete(f.messages, ownerID)
	return n, nil
}

type fakeTasks struct {
	rows []store.TaskWithProject
}

func (f *fakeTasks) ListVisibleTasks(context.Context, *int64) ([]store.TaskWithProject, error) {
	return f.rows, nil
}

type fakeSettings struct {
	owner   *models.AiSettings
	global  *models.AiSettings
	ensured int
}

func (f *fakeSettings) AiSettingsRows(context.Context, int64) (*models.AiSettings, *models.AiSettings, error) {
	return f.owner, f.global, nil
}

func (f *fakeSettings) EnsureAiSettings(_ context.Context, ownerID int64) (*models.AiSettings, error) {
	f.ensured++
	return &models.AiSettings{OwnerID: ownerID}, nil
}

type fakeLLM struct {
	lastRequest llm.Request
	reply       string
	err         error
	calls       int
}

func (f *fakeLLM) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	f.calls++
	f.lastRequest = req
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.reply}, nil
}

func newDispatcher(log *fakeLog, settings *fakeSettings, client *fakeLLM) *Dispatcher {
	return &Dispatcher{
		Log:      log,
		Tasks:    &fakeTasks{},
		Settings: settings,
		NewLLM:   func(string) llm.Client { return client },
		Config:   DefaultConfig(),
	}
}

func keyedSettings() *fakeSettings {
	return &fakeSettings{owner: &models.AiSettings{OwnerID: 1, OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"}}
}

func TestRespond_Success(t *testing.T) {
	log := newFakeLog()
	client := &fakeLLM{reply: "answer"}
	d := newDispatcher(log, keyedSettings(), client)

	reply, err := d.Respond(context.Background(), Turn{OwnerID: 1, Text: "hello"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "answer" {
		t.Fatalf("Respond() = %q, want %q", reply, "answer")
	}

	msgs := log.messages[1]
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Fatalf("roles = %s,%s, want user,assistant", msgs[0].Role, msgs[1].Role)
	}

	if client.lastRequest.Temperature != 0.2 {
		t.Fatalf("Temperature = %v, want 0.2", client.lastRequest.Temperature)
	}
	if client.lastRequest.Model != "gpt-4o-mini" {
		t.Fatalf("Model = %q, want resolved model", client.lastRequest.Model)
	}
	if client.lastRequest.Messages[0].Role != llm.RoleSystem {
		t.Fatalf("first message role = %q, want system", client.lastRequest.Messages[0].Role)
	}
}

func TestRespond_ModelFallback(t *testing.T) {
	log := newFakeLog()
	client := &fakeLLM{reply: "ok"}
	settings := &fakeSettings{owner: &models.AiSettings{OwnerID: 1, OpenAIAPIKey: "sk-test"}}
	d := newDispatcher(log, settings, client)

	if _, err := d.Respond(context.Background(), Turn{OwnerID: 1, Text: "hi"}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if client.lastRequest.Model != "gpt-4o" {
		t.Fatalf("Model = %q, want default fallback", client.lastRequest.Model)
	}
}

func TestRespond_HistoryWindow(t *testing.T) {
	log := newFakeLog()
	for i := 0; i < 35; i++ {
		_ = log.AppendMessage(context.Background(), 1, models.RoleUser, fmt.Sprintf("msg %d", i))
	}
	client := &fakeLLM{reply: "ok"}
	d := newDispatcher(log, keyedSettings(), client)

	if _, err := d.Respond(context.Background(), Turn{OwnerID: 1, Text: "msg 35"}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	// 36 stored user turns, windowed to 30, plus the system context.
	if got := len(client.lastRequest.Messages); got != 31 {
		t.Fatalf("outgoing messages = %d, want 31", got)
	}
	if client.lastRequest.Messages[30].Content != "msg 35" {
		t.Fatalf("last message = %q, want newest turn", client.lastRequest.Messages[30].Content)
	}
	if client.lastRequest.Messages[1].Content != "msg 6" {
		t.Fatalf("first history message = %q, want oldest inside window", client.lastRequest.Messages[1].Content)
	}
}

func TestRespond_NotConfigured(t *testing.T) {
	log := newFakeLog()
	client := &fakeLLM{}
	settings := &fakeSettings{owner: &models.AiSettings{OwnerID: 1}}
	d := newDispatcher(log, settings, client)

	reply, err := d.Respond(context.Background(), Turn{OwnerID: 1, Text: "hello"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != NotConfiguredReply {
		t.Fatalf("Respond() = %q, want not-configured reply", reply)
	}
	if client.calls != 0 {
		t.Fatalf("LLM calls = %d, want 0", client.calls)
	}
	// The inbound message is persisted before the credential check.
	if len(log.messages[1]) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(log.messages[1]))
	}
}

func TestRespond_LazySettingsRow(t *testing.T) {
	log := newFakeLog()
	client := &fakeLLM{}
	settings := &fakeSettings{}
	d := newDispatcher(log, settings, client)

	reply, err := d.Respond(context.Background(), Turn{OwnerID: 1, Text: "hello"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != NotConfiguredReply {
		t.Fatalf("Respond() = %q, want not-configured reply", reply)
	}
	if settings.ensured != 1 {
		t.Fatalf("EnsureAiSettings calls = %d, want 1", settings.ensured)
	}
}

func TestRespond_CollaboratorFailure(t *testing.T) {
	log := newFakeLog()
	client := &fakeLLM{err: fmt.Errorf("rate limited")}
	d := newDispatcher(log, keyedSettings(), client)

	reply, err := d.Respond(context.Background(), Turn{OwnerID: 1, Text: "hello"})
	if err != nil {
		t.Fatalf("Respond() error = %v, want nil (per-turn failure)", err)
	}
	if !strings.Contains(reply, "rate limited") {
		t.Fatalf("Respond() = %q, want failure detail included", reply)
	}
	// Only the user message survives a failed turn.
	if len(log.messages[1]) != 1 || log.messages[1][0].Role != models.RoleUser {
		t.Fatalf("persisted = %+v, want only the user message", log.messages[1])
	}
}

func TestRespond_ClearCommand(t *testing.T) {
	log := newFakeLog()
	_ = log.AppendMessage(context.Background(), 1, models.RoleUser, "old")
	_ = log.AppendMessage(context.Background(), 2, models.RoleUser, "other owner")
	client := &fakeLLM{}
	d := newDispatcher(log, keyedSettings(), client)

	for _, text := range []string{"/clear", "Очистить контекст", "  CLEAR  "} {
		_ = log.AppendMessage(context.Background(), 1, models.RoleUser, "old")
		reply, err := d.Respond(context.Background(), Turn{OwnerID: 1, Text: text})
		if err != nil {
			t.Fatalf("Respond(%q) error = %v", text, err)
		}
		if reply != ContextClearedReply {
			t.Fatalf("Respond(%q) = %q, want cleared reply", text, reply)
		}
	}
	if client.calls != 0 {
		t.Fatalf("LLM calls = %d, want 0", client.calls)
	}
	if len(log.messages[1]) != 0 {
		t.Fatalf("owner 1 messages = %d, want 0", len(log.messages[1]))
	}
	if len(log.messages[2]) != 1 {
		t.Fatalf("owner 2 messages = %d, want untouched", len(log.messages[2]))
	}
}

func TestIsStartCommand(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"/start", true},
		{"/START", true},
		{"/start@taskbot", true},
		{"  /start  ", true},
		{"start", false},
		{"привет", false},
		{"очистить контекст", false},
	}
	for _, tc := range cases {
		if got := IsStartCommand(tc.text); got != tc.want {
			t.Fatalf("IsStartCommand(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestRespond_UsageWarning(t *testing.T) {
	log := newFakeLog()
	_ = log.AppendMessage(context.Background(), 1, models.RoleUser, strings.Repeat("x", 900))
	client := &fakeLLM{reply: "ok"}
	d := newDispatcher(log, keyedSettings(), client)
	d.Config.MaxContextChars = 1000

	var notified []string
	turn := Turn{
		OwnerID: 1,
		Text:    "hello",
		Notify: func(_ context.Context, text string) error {
			notified = append(notified, text)
			return nil
		},
	}
	if _, err := d.Respond(context.Background(), turn); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if len(notified) != 1 || notified[0] != UsageWarningNotice {
		t.Fatalf("notified = %v, want one usage warning", notified)
	}
	if client.calls != 1 {
		t.Fatalf("LLM calls = %d, want 1 (warning does not abort the turn)", client.calls)
	}
}

func TestRespond_EmptyTextNotPersisted(t *testing.T) {
	log := newFakeLog()
	client := &fakeLLM{reply: "ok"}
	d := newDispatcher(log, keyedSettings(), client)

	if _, err := d.Respond(context.Background(), Turn{OwnerID: 1, Text: "   "}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	for _, m := range log.messages[1] {
		if m.Role == models.RoleUser {
			t.Fatalf("blank inbound text was persisted: %+v", m)
		}
	}
}
