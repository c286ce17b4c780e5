package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/quailyquaily/taskmorph/assistant"
	"github.com/quailyquaily/taskmorph/internal/telegram"
)

// handleWebhook processes one bot update. Telegram retries any non-200
// response, so the handler acknowledges every update, including ones it
// cannot parse.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ack := func() { writeJSON(w, http.StatusOK, map[string]bool{"ok": true}) }

	var update telegram.Update
	if err := decodeJSON(r, &update); err != nil {
		s.logger().Warn("webhook_decode_failed", "error", err)
		ack()
		return
	}

	msg := update.Incoming()
	if msg == nil || msg.Chat == nil {
		ack()
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		ack()
		return
	}

	chatID := msg.Chat.ID
	if assistant.IsStartCommand(text) {
		s.send(r.Context(), chatID, assistant.StartGreeting)
		ack()
		return
	}

	// Conversations and settings belong to the sender; the chat is only the
	// reply address.
	var ownerID int64
	if msg.From != nil {
		ownerID = msg.From.ID
	}

	reply, err := s.Assistant.Respond(r.Context(), assistant.Turn{
		OwnerID: ownerID,
		Text:    text,
		Notify: func(ctx context.Context, notice string) error {
			return s.sendErr(ctx, chatID, notice)
		},
	})
	if err != nil {
		s.logger().Error("webhook_turn_failed", "chat_id", chatID, "error", err)
		ack()
		return
	}
	if reply != "" {
		s.send(r.Context(), chatID, reply)
	}
	ack()
}

func (s *Server) send(ctx context.Context, chatID int64, text string) {
	if err := s.sendErr(ctx, chatID, text); err != nil {
		s.logger().Error("send_message_failed", "chat_id", chatID, "error", err)
	}
}

func (s *Server) sendErr(ctx context.Context, chatID int64, text string) error {
	if s.Sender == nil {
		return nil
	}
	return s.Sender.SendMessage(ctx, chatID, text, assistant.ClearButtonLabel)
}
