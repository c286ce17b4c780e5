package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/quailyquaily/taskmorph/db/models"
)

// ListProjects returns the owner's projects plus shared ones.
func (s *Store) ListProjects(ctx context.Context, ownerID *int64) ([]models.Project, error) {
	q := s.db.WithContext(ctx)
	if ownerID != nil {
		q = q.Where("owner_id = ? OR owner_id IS NULL", *ownerID)
	}
	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, errors.Wrap(err, "listing projects")
	}
	return projects, nil
}

// CreateProject inserts a project owned by the caller.
func (s *Store) CreateProject(ctx context.Context, project *models.Project) error {
	project.ID = 0
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return errors.Wrap(err, "creating project")
	}
	return nil
}

// GetProject fetches one project by id.
func (s *Store) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).First(&project, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting project")
	}
	return &project, nil
}

// DeleteProject removes the project together with its tasks.
func (s *Store) DeleteProject(ctx context.Context, id uint) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, id).Error
	})
	if err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return nil
}
