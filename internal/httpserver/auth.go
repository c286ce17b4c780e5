package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/quailyquaily/taskmorph/auth"
)

type telegramAuthRequest struct {
	InitData string `json:"init_data"`
}

type telegramAuthResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        map[string]any `json:"user"`
}

// handleTelegramAuth exchanges a signed WebApp initData payload for a session
// token.
func (s *Server) handleTelegramAuth(w http.ResponseWriter, r *http.Request) {
	if s.BotToken == "" {
		writeError(w, http.StatusUnauthorized, "telegram auth is not configured")
		return
	}

	var req telegramAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InitData == "" {
		writeError(w, http.StatusBadRequest, "init_data is required")
		return
	}

	data, err := auth.VerifyInitData(req.InitData, s.BotToken, time.Now())
	switch {
	case errors.Is(err, auth.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "invalid init data signature")
		return
	case errors.Is(err, auth.ErrExpiredPayload):
		writeError(w, http.StatusUnauthorized, "init data has expired")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "malformed init data")
		return
	}
	if data.User == nil {
		writeError(w, http.StatusBadRequest, "init data carries no user")
		return
	}

	user := map[string]any{
		"id":         data.User.ID,
		"first_name": data.User.FirstName,
	}
	if data.User.LastName != "" {
		user["last_name"] = data.User.LastName
	}
	if data.User.Username != "" {
		user["username"] = data.User.Username
	}
	if data.User.LanguageCode != "" {
		user["language_code"] = data.User.LanguageCode
	}

	token, err := s.Issuer.Issue(user)
	if err != nil {
		s.logger().Error("token_issue_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, telegramAuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}
