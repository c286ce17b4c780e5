package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/taskmorph/auth"
	"github.com/quailyquaily/taskmorph/internal/httpserver"
	"github.com/quailyquaily/taskmorph/internal/telegram"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP backend (WebApp API + Telegram webhook)",
		RunE: func(cmd *cobra.Command, args []string) error {
			bind := strings.TrimSpace(flagOrViperString(cmd, "server-bind", "server.bind"))
			if bind == "" {
				bind = "127.0.0.1"
			}
			port := flagOrViperInt(cmd, "server-port", "server.port")
			if port <= 0 {
				port = 8080
			}

			jwtSecret := strings.TrimSpace(flagOrViperString(cmd, "server-jwt-secret", "server.jwt_secret"))
			if jwtSecret == "" {
				return fmt.Errorf("missing server.jwt_secret (set via --server-jwt-secret or %s_SERVER_JWT_SECRET)", envPrefix)
			}

			deps, err := buildDeps()
			if err != nil {
				return err
			}
			logger := deps.Logger

			botToken := strings.TrimSpace(viper.GetString("telegram.bot_token"))
			var sender httpserver.MessageSender
			var api *telegram.API
			if botToken != "" {
				api = telegram.New(nil, "", botToken)
				sender = api
			}

			srv := &httpserver.Server{
				Store:          deps.Store,
				Issuer:         auth.NewIssuer(jwtSecret, viper.GetDuration("server.token_ttl")),
				Assistant:      deps.Dispatcher,
				Sender:         sender,
				BotToken:       botToken,
				AllowAnonymous: flagOrViperBool(cmd, "server-allow-anonymous", "server.allow_anonymous"),
				Logger:         logger,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if webhookURL := strings.TrimSpace(viper.GetString("telegram.webhook_url")); webhookURL != "" {
				if api == nil {
					return fmt.Errorf("telegram.webhook_url requires telegram.bot_token")
				}
				if err := api.SetWebhook(ctx, webhookURL); err != nil {
					return fmt.Errorf("set webhook: %w", err)
				}
				logger.Info("webhook_registered", "url", webhookURL)
			}

			addr := fmt.Sprintf("%s:%d", bind, port)
			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("serve_start", "addr", addr, "allow_anonymous", srv.AllowAnonymous, "webhook", sender != nil)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			logger.Info("serve_stopped")
			return nil
		},
	}

	cmd.Flags().String("server-bind", "127.0.0.1", "Bind address.")
	cmd.Flags().Int("server-port", 8080, "Listen port.")
	cmd.Flags().String("server-jwt-secret", "", "Secret used to sign session tokens.")
	cmd.Flags().Bool("server-allow-anonymous", false, "Let requests without a valid token through as anonymous.")

	return cmd
}
