// Package assistant implements the transport-agnostic dispatch pipeline: it
// persists the inbound message, assembles bounded LLM context from open tasks
// plus rolling history, and returns the reply both the polling bot and the
// webhook send back to the user.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quailyquaily/taskmorph/db/models"
	"github.com/quailyquaily/taskmorph/llm"
	"github.com/quailyquaily/taskmorph/store"
)

// Fixed user-visible replies.
const (
	NotConfiguredReply  = "Не задан API токен ChatGPT. Задайте его в настройках приложения."
	ContextClearedReply = "Контекст очищен."
	UsageWarningNotice  = "Внимание: контекст диалога достиг 85% от лимита. Рекомендуется очистить контекст."
	StartGreeting       = "Привет! Я помогу с задачами.\n— Введите ваш запрос, я отвечу на основе текущих открытых задач.\n— Нажмите кнопку \"Очистить контекст\" чтобы начать заново."

	// ClearButtonLabel is the reply-keyboard button every outbound message carries.
	ClearButtonLabel = "Очистить контекст"
)

// ConversationLog is the append-only message store consulted per turn.
type ConversationLog interface {
	AppendMessage(ctx context.Context, ownerID int64, role, content string) error
	ListMessages(ctx context.Context, ownerID int64) ([]models.ChatMessage, error)
	DeleteMessages(ctx context.Context, ownerID int64) (int64, error)
}

// TaskDirectory supplies the open tasks visible to an owner.
type TaskDirectory interface {
	ListVisibleTasks(ctx context.Context, ownerID *int64) ([]store.TaskWithProject, error)
}

// SettingsSource supplies the AI settings rows a turn resolves against.
type SettingsSource interface {
	AiSettingsRows(ctx context.Context, ownerID int64) (owner, global *models.AiSettings, err error)
	EnsureAiSettings(ctx context.Context, ownerID int64) (*models.AiSettings, error)
}

// ClientFactory builds an LLM client for the API key a turn resolved.
type ClientFactory func(apiKey string) llm.Client

// Config bounds the context pipeline.
type Config struct {
	HistoryLimit    int
	MaxContextChars int
	WarnThreshold   float64
	DefaultModel    string
	Temperature     float32
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit:    30,
		MaxContextChars: 100000,
		WarnThreshold:   0.85,
		DefaultModel:    "gpt-4o",
		Temperature:     0.2,
	}
}

// Dispatcher runs one inbound-to-reply turn. It holds no state between turns
// beyond what lives in the stores.
type Dispatcher struct {
	Log      ConversationLog
	Tasks    TaskDirectory
	Settings SettingsSource
	NewLLM   ClientFactory
	Config   Config
	Logger   *slog.Logger
}

// Turn is one inbound message. Notify, when set, receives transient notices
// (the usage warning) that are sent to the user but never persisted.
type Turn struct {
	OwnerID int64
	Text    string
	Notify  func(ctx context.Context, text string) error
}

// clearTriggers end a conversation without touching the LLM.
var clearTriggers = map[string]bool{
	"очистить контекст": true,
	"/clear":            true,
	"clear":             true,
}

// IsClearCommand reports whether the text triggers the context wipe.
func IsClearCommand(text string) bool {
	return clearTriggers[strings.ToLower(strings.TrimSpace(text))]
}

// IsStartCommand matches /start and its variants ("/START", "/start@botname").
func IsStartCommand(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "/start")
}

// Respond executes the turn pipeline. LLM failures are not returned as
// errors: they resolve to a user-visible reply so a bad turn never takes the
// transport down. Errors are reserved for persistence failures.
func (d *Dispatcher) Respond(ctx context.Context, turn Turn) (string, error) {
	logger := d.logger()

	if IsClearCommand(turn.Text) {
		removed, err := d.Log.DeleteMessages(ctx, turn.OwnerID)
		if err != nil {
			return "", fmt.Errorf("clearing context: %w", err)
		}
		logger.Info("context_cleared", "owner_id", turn.OwnerID, "removed", removed)
		return ContextClearedReply, nil
	}

	if text := strings.TrimSpace(turn.Text); text != "" {
		if err := d.Log.AppendMessage(ctx, turn.OwnerID, models.RoleUser, turn.Text); err != nil {
			return "", fmt.Errorf("persisting user message: %w", err)
		}
	}

	settings, err := d.resolveSettings(ctx, turn.OwnerID)
	if err != nil {
		return "", err
	}
	logger.Info("ai_settings_resolved",
		"owner_id", settings.OwnerID,
		"has_key", strings.TrimSpace(settings.OpenAIAPIKey) != "",
		"model", settings.OpenAIModel)
	if strings.TrimSpace(settings.OpenAIAPIKey) == "" {
		return NotConfiguredReply, nil
	}

	messages, err := d.assembleMessages(ctx, turn.OwnerID)
	if err != nil {
		return "", err
	}

	usage := EstimateUsage(messages, d.Config.MaxContextChars)
	logger.Debug("context_usage", "owner_id", turn.OwnerID, "usage", usage, "messages", len(messages))
	if usage >= d.Config.WarnThreshold && turn.Notify != nil {
		if err := turn.Notify(ctx, UsageWarningNotice); err != nil {
			logger.Warn("usage_warning_send_failed", "owner_id", turn.OwnerID, "error", err.Error())
		}
	}

	model := settings.OpenAIModel
	if strings.TrimSpace(model) == "" {
		model = d.Config.DefaultModel
	}

	result, err := d.NewLLM(settings.OpenAIAPIKey).Chat(ctx, llm.Request{
		Model:       model,
		Messages:    messages,
		Temperature: d.Config.Temperature,
	})
	if err != nil {
		logger.Warn("llm_call_failed", "owner_id", turn.OwnerID, "error", err.Error())
		return fmt.Sprintf("Ошибка при обращении к ChatGPT API: %v", err), nil
	}

	if err := d.Log.AppendMessage(ctx, turn.OwnerID, models.RoleAssistant, result.Text); err != nil {
		return "", fmt.Errorf("persisting assistant reply: %w", err)
	}
	logger.Info("llm_call_ok", "owner_id", turn.OwnerID, "model", model, "answer_len", len(result.Text))
	return result.Text, nil
}

// resolveSettings applies the owner-over-global preference and lazily creates
// an empty row when neither exists.
func (d *Dispatcher) resolveSettings(ctx context.Context, ownerID int64) (*models.AiSettings, error) {
	owner, global, err := d.Settings.AiSettingsRows(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("reading ai settings: %w", err)
	}
	if chosen := ResolveAISettings(owner, global); chosen != nil {
		return chosen, nil
	}
	created, err := d.Settings.EnsureAiSettings(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("creating ai settings: %w", err)
	}
	return created, nil
}

// assembleMessages builds the outgoing list: the system context first, then
// the most recent HistoryLimit messages oldest-first. Older history is
// dropped, not summarized.
func (d *Dispatcher) assembleMessages(ctx context.Context, ownerID int64) ([]llm.Message, error) {
	tasks, err := d.Tasks.ListVisibleTasks(ctx, &ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for context: %w", err)
	}
	history, err := d.Log.ListMessages(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	if limit := d.Config.HistoryLimit; limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: SystemContext(tasks)})
	for _, h := range history {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	return messages, nil
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
