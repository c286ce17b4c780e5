package assistant

import (
	"strings"

	"github.com/quailyquaily/taskmorph/db/models"
)

// ResolveAISettings picks the settings row for a turn. A row counts as usable
// when it carries a non-empty API key; the owner's usable row wins over the
// global one, and with no usable row the owner's row is still preferred over
// the global row. Nil means neither row exists and the caller should create a
// fresh empty row for the owner.
func ResolveAISettings(owner, global *models.AiSettings) *models.AiSettings {
	switch {
	case hasKey(owner):
		return owner
	case hasKey(global):
		return global
	case owner != nil:
		return owner
	default:
		return global
	}
}

func hasKey(s *models.AiSettings) bool {
	return s != nil && strings.TrimSpace(s.OpenAIAPIKey) != ""
}
