package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/quailyquaily/taskmorph/db/models"
)

// AppendMessage appends one role-tagged message to the owner's conversation.
func (s *Store) AppendMessage(ctx context.Context, ownerID int64, role, content string) error {
	msg := &models.ChatMessage{
		OwnerID: ownerID,
		Role:    role,
		Content: content,
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return errors.Wrap(err, "appending chat message")
	}
	return nil
}

// ListMessages returns the owner's conversation oldest-first.
func (s *Store) ListMessages(ctx context.Context, ownerID int64) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing chat messages")
	}
	return msgs, nil
}

// DeleteMessages removes every message belonging to the owner. Other owners'
// rows are untouched.
func (s *Store) DeleteMessages(ctx context.Context, ownerID int64) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&models.ChatMessage{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "deleting chat messages")
	}
	return res.RowsAffected, nil
}
