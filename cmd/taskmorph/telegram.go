package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/taskmorph/assistant"
	"github.com/quailyquaily/taskmorph/internal/telegram"
)

func newTelegramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Run the assistant as a long-polling Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or %s_TELEGRAM_BOT_TOKEN)", envPrefix)
			}

			pollTimeout := flagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout")
			if pollTimeout <= 0 {
				pollTimeout = 30 * time.Second
			}
			maxConc := flagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency")
			if maxConc <= 0 {
				maxConc = 3
			}

			deps, err := buildDeps()
			if err != nil {
				return err
			}
			logger := deps.Logger

			api := telegram.New(nil, "", token)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			me, err := api.GetMe(ctx)
			if err != nil {
				return err
			}
			logger.Info("telegram_start",
				"bot_username", me.Username,
				"bot_id", me.ID,
				"poll_timeout", pollTimeout.String(),
				"max_concurrency", maxConc,
			)

			sem := make(chan struct{}, maxConc)
			var wg sync.WaitGroup
			var offset int64

			for {
				updates, nextOffset, err := api.GetUpdates(ctx, offset, pollTimeout)
				if err != nil {
					if ctx.Err() != nil || errors.Is(err, context.Canceled) {
						break
					}
					logger.Warn("telegram_get_updates_error", "error", err.Error())
					time.Sleep(1 * time.Second)
					continue
				}
				offset = nextOffset

				for _, u := range updates {
					msg := u.Incoming()
					if msg == nil || msg.Chat == nil {
						continue
					}
					if msg.From != nil && msg.From.IsBot {
						continue
					}
					text := strings.TrimSpace(msg.Text)
					if text == "" {
						continue
					}
					chatID := msg.Chat.ID

					if assistant.IsStartCommand(text) {
						sendReply(ctx, api, logger, chatID, assistant.StartGreeting)
						continue
					}

					// Owner is the sender, not the chat.
					var ownerID int64
					if msg.From != nil {
						ownerID = msg.From.ID
					}

					sem <- struct{}{}
					wg.Add(1)
					go func(chatID, ownerID int64, text string) {
						defer wg.Done()
						defer func() { <-sem }()

						reply, err := deps.Dispatcher.Respond(ctx, assistant.Turn{
							OwnerID: ownerID,
							Text:    text,
							Notify: func(ctx context.Context, notice string) error {
								return api.SendMessage(ctx, chatID, notice, assistant.ClearButtonLabel)
							},
						})
						if err != nil {
							logger.Error("telegram_turn_failed", "chat_id", chatID, "error", err)
							return
						}
						if reply != "" {
							sendReply(ctx, api, logger, chatID, reply)
						}
					}(chatID, ownerID, text)
				}

				if ctx.Err() != nil {
					break
				}
			}

			wg.Wait()
			logger.Info("telegram_stopped")
			return nil
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().Int("telegram-max-concurrency", 3, "Max number of chats processed concurrently.")

	return cmd
}

func sendReply(ctx context.Context, api *telegram.API, logger *slog.Logger, chatID int64, text string) {
	if err := api.SendMessage(ctx, chatID, text, assistant.ClearButtonLabel); err != nil {
		logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
	}
}
