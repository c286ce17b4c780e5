package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/quailyquaily/taskmorph/db/models"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// TaskWithProject pairs a task with the name of its project, when any.
type TaskWithProject struct {
	Task        models.Task
	ProjectName *string
}

// visibleTasks scopes a query to the owner's rows plus shared (NULL owner)
// rows. A nil owner sees everything, matching the original backend.
func visibleTasks(q *gorm.DB, ownerID *int64) *gorm.DB {
	if ownerID == nil {
		return q
	}
	return q.Where("tasks.owner_id = ? OR tasks.owner_id IS NULL", *ownerID)
}

// ListVisibleTasks returns every task visible to the owner, left-joined with
// its project for display.
func (s *Store) ListVisibleTasks(ctx context.Context, ownerID *int64) ([]TaskWithProject, error) {
	type row struct {
		models.Task
		ProjectName *string
	}

	var rows []row
	q := s.db.WithContext(ctx).
		Table("tasks").
		Select("tasks.*, projects.name AS project_name").
		Joins("LEFT JOIN projects ON projects.id = tasks.project_id")
	if err := visibleTasks(q, ownerID).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing visible tasks")
	}

	out := make([]TaskWithProject, 0, len(rows))
	for _, r := range rows {
		out = append(out, TaskWithProject{Task: r.Task, ProjectName: r.ProjectName})
	}
	return out, nil
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	ProjectID *uint
	Day       *time.Time // deadline date match
}

// ListTasks returns visible tasks, newest-created first.
func (s *Store) ListTasks(ctx context.Context, ownerID *int64, filter TaskFilter) ([]models.Task, error) {
	q := visibleTasks(s.db.WithContext(ctx).Table("tasks"), ownerID)
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Day != nil {
		day := filter.Day.Truncate(24 * time.Hour)
		q = q.Where("deadline >= ? AND deadline < ?", day, day.Add(24*time.Hour))
	}

	var tasks []models.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, errors.Wrap(err, "listing tasks")
	}
	return tasks, nil
}

// ListEvents returns visible kind=event tasks whose window overlaps
// [start, end]; a nil bound leaves that side open.
func (s *Store) ListEvents(ctx context.Context, ownerID *int64, start, end *time.Time) ([]models.Task, error) {
	q := visibleTasks(s.db.WithContext(ctx).Table("tasks"), ownerID).
		Where("kind = ?", models.KindEvent)
	if start != nil {
		q = q.Where("event_end >= ?", *start)
	}
	if end != nil {
		q = q.Where("event_start <= ?", *end)
	}

	var events []models.Task
	if err := q.Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "listing events")
	}
	return events, nil
}

// CreateTask inserts a task owned by the caller.
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	task.ID = 0
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return errors.Wrap(err, "creating task")
	}
	return nil
}

// GetTask fetches one task by id.
func (s *Store) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting task")
	}
	return &task, nil
}

// TaskUpdate carries the fields of a partial update; nil fields are left
// unchanged.
type TaskUpdate struct {
	Title         *string
	Description   *string
	Deadline      *time.Time
	DurationHours *float64
	Priority      *string
	Importance    *string
	Kind          *string
	EventStart    *time.Time
	EventEnd      *time.Time
	ProjectID     *uint
}

// UpdateTask applies the supplied fields and returns the updated row.
func (s *Store) UpdateTask(ctx context.Context, id uint, update TaskUpdate) (*models.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if update.Title != nil {
		changes["title"] = *update.Title
	}
	if update.Description != nil {
		changes["description"] = *update.Description
	}
	if update.Deadline != nil {
		changes["deadline"] = *update.Deadline
	}
	if update.DurationHours != nil {
		changes["duration_hours"] = *update.DurationHours
	}
	if update.Priority != nil {
		changes["priority"] = *update.Priority
	}
	if update.Importance != nil {
		changes["importance"] = *update.Importance
	}
	if update.Kind != nil {
		changes["kind"] = *update.Kind
	}
	if update.EventStart != nil {
		changes["event_start"] = *update.EventStart
	}
	if update.EventEnd != nil {
		changes["event_end"] = *update.EventEnd
	}
	if update.ProjectID != nil {
		changes["project_id"] = *update.ProjectID
	}
	if len(changes) == 0 {
		return task, nil
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(changes).Error; err != nil {
		return nil, errors.Wrap(err, "updating task")
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes one task by id.
func (s *Store) DeleteTask(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Task{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting task")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTasks returns how many tasks the owner can see.
func (s *Store) CountTasks(ctx context.Context, ownerID *int64) (int64, error) {
	var n int64
	q := visibleTasks(s.db.WithContext(ctx).Table("tasks"), ownerID)
	if err := q.Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "counting tasks")
	}
	return n, nil
}

// CountOverdue returns how many visible tasks have a deadline before now.
func (s *Store) CountOverdue(ctx context.Context, ownerID *int64, now time.Time) (int64, error) {
	var n int64
	q := visibleTasks(s.db.WithContext(ctx).Table("tasks"), ownerID).
		Where("deadline IS NOT NULL AND deadline < ?", now)
	if err := q.Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "counting overdue tasks")
	}
	return n, nil
}
