package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/quailyquaily/taskmorph/db/models"
)

// AiSettingsRows returns the owner's row and the global fallback row, either
// of which may be nil. Choosing between them is left to the caller.
func (s *Store) AiSettingsRows(ctx context.Context, ownerID int64) (owner, global *models.AiSettings, err error) {
	owner, err = s.aiSettingsRow(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if ownerID != models.GlobalOwnerID {
		global, err = s.aiSettingsRow(ctx, models.GlobalOwnerID)
		if err != nil {
			return nil, nil, err
		}
	}
	return owner, global, nil
}

func (s *Store) aiSettingsRow(ctx context.Context, ownerID int64) (*models.AiSettings, error) {
	var row models.AiSettings
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting ai settings")
	}
	return &row, nil
}

// EnsureAiSettings returns the owner's row, creating an empty one only when
// none exists yet.
func (s *Store) EnsureAiSettings(ctx context.Context, ownerID int64) (*models.AiSettings, error) {
	row, err := s.aiSettingsRow(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	row = &models.AiSettings{OwnerID: ownerID}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, errors.Wrap(err, "creating ai settings")
	}
	return row, nil
}

// AiSettingsUpdate carries an explicit update. A nil field is "not supplied";
// a supplied key that is empty or whitespace-only is treated as "no change" so
// blank form input never wipes a stored credential.
type AiSettingsUpdate struct {
	OpenAIAPIKey *string
	OpenAIModel  *string
}

// UpdateAiSettings applies the update to the owner's row, creating the row
// first when it does not exist.
func (s *Store) UpdateAiSettings(ctx context.Context, ownerID int64, update AiSettingsUpdate) (*models.AiSettings, error) {
	row, err := s.aiSettingsRow(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		if row, err = s.EnsureAiSettings(ctx, ownerID); err != nil {
			return nil, err
		}
	}

	changes := map[string]any{}
	if update.OpenAIAPIKey != nil && strings.TrimSpace(*update.OpenAIAPIKey) != "" {
		changes["openai_api_key"] = *update.OpenAIAPIKey
	}
	if update.OpenAIModel != nil {
		changes["openai_model"] = *update.OpenAIModel
	}
	if len(changes) == 0 {
		return row, nil
	}

	if err := s.db.WithContext(ctx).Model(row).Updates(changes).Error; err != nil {
		return nil, errors.Wrap(err, "updating ai settings")
	}
	return s.aiSettingsRow(ctx, ownerID)
}

// GetUserSettings returns the owner's capacity row, creating the default one
// lazily.
func (s *Store) GetUserSettings(ctx context.Context, ownerID int64) (*models.UserSettings, error) {
	var row models.UserSettings
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.UserSettings{
			OwnerID:  ownerID,
			HoursMon: 9, HoursTue: 9, HoursWed: 9, HoursThu: 9,
			HoursFri: 9, HoursSat: 9, HoursSun: 9,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, errors.Wrap(err, "creating user settings")
		}
		return &row, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting user settings")
	}
	return &row, nil
}

// UpdateUserSettings overwrites the capacity hours.
func (s *Store) UpdateUserSettings(ctx context.Context, ownerID int64, hours [7]int) (*models.UserSettings, error) {
	row, err := s.GetUserSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	changes := map[string]any{
		"hours_mon": hours[0],
		"hours_tue": hours[1],
		"hours_wed": hours[2],
		"hours_thu": hours[3],
		"hours_fri": hours[4],
		"hours_sat": hours[5],
		"hours_sun": hours[6],
	}
	if err := s.db.WithContext(ctx).Model(row).Updates(changes).Error; err != nil {
		return nil, errors.Wrap(err, "updating user settings")
	}
	return s.GetUserSettings(ctx, ownerID)
}
