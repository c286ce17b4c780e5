package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quailyquaily/taskmorph/db/models"
	"github.com/quailyquaily/taskmorph/store"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"anonymous": identity.Anonymous,
		"user":      identity.User,
	})
}

// --- user settings ---

func (s *Server) handleGetUserSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Store.GetUserSettings(r.Context(), ownerOrGlobal(r))
	if err != nil {
		s.fail(w, "get user settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type userSettingsRequest struct {
	HoursMon *int `json:"hours_mon"`
	HoursTue *int `json:"hours_tue"`
	HoursWed *int `json:"hours_wed"`
	HoursThu *int `json:"hours_thu"`
	HoursFri *int `json:"hours_fri"`
	HoursSat *int `json:"hours_sat"`
	HoursSun *int `json:"hours_sun"`
}

func (s *Server) handlePutUserSettings(w http.ResponseWriter, r *http.Request) {
	var req userSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner := ownerOrGlobal(r)
	current, err := s.Store.GetUserSettings(r.Context(), owner)
	if err != nil {
		s.fail(w, "get user settings", err)
		return
	}

	hours := [7]int{
		current.HoursMon, current.HoursTue, current.HoursWed, current.HoursThu,
		current.HoursFri, current.HoursSat, current.HoursSun,
	}
	for i, p := range []*int{req.HoursMon, req.HoursTue, req.HoursWed, req.HoursThu, req.HoursFri, req.HoursSat, req.HoursSun} {
		if p == nil {
			continue
		}
		if *p < 0 || *p > 24 {
			writeError(w, http.StatusBadRequest, "hours must be between 0 and 24")
			return
		}
		hours[i] = *p
	}

	updated, err := s.Store.UpdateUserSettings(r.Context(), owner, hours)
	if err != nil {
		s.fail(w, "update user settings", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- ai settings ---

type aiSettingsResponse struct {
	OpenAIModel string `json:"openai_model"`
	HasAPIKey   bool   `json:"has_api_key"`
}

// handleGetAiSettings never returns the stored key, only whether one is set.
func (s *Server) handleGetAiSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Store.EnsureAiSettings(r.Context(), ownerOrGlobal(r))
	if err != nil {
		s.fail(w, "get ai settings", err)
		return
	}
	writeJSON(w, http.StatusOK, aiSettingsResponse{
		OpenAIModel: settings.OpenAIModel,
		HasAPIKey:   strings.TrimSpace(settings.OpenAIAPIKey) != "",
	})
}

type aiSettingsRequest struct {
	OpenAIAPIKey *string `json:"openai_api_key"`
	OpenAIModel  *string `json:"openai_model"`
}

func (s *Server) handlePutAiSettings(w http.ResponseWriter, r *http.Request) {
	var req aiSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := s.Store.UpdateAiSettings(r.Context(), ownerOrGlobal(r), store.AiSettingsUpdate{
		OpenAIAPIKey: req.OpenAIAPIKey,
		OpenAIModel:  req.OpenAIModel,
	})
	if err != nil {
		s.fail(w, "update ai settings", err)
		return
	}
	writeJSON(w, http.StatusOK, aiSettingsResponse{
		OpenAIModel: settings.OpenAIModel,
		HasAPIKey:   strings.TrimSpace(settings.OpenAIAPIKey) != "",
	})
}

// --- tasks ---

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var filter store.TaskFilter
	if v := r.URL.Query().Get("project_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid project_id")
			return
		}
		pid := uint(id)
		filter.ProjectID = &pid
	}
	if v := r.URL.Query().Get("day"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid day, want YYYY-MM-DD")
			return
		}
		filter.Day = &day
	}

	tasks, err := s.Store.ListTasks(r.Context(), ownerScope(r), filter)
	if err != nil {
		s.fail(w, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type taskRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Deadline      *time.Time `json:"deadline"`
	DurationHours *float64   `json:"duration_hours"`
	Priority      *string    `json:"priority"`
	Importance    *string    `json:"importance"`
	Kind          *string    `json:"kind"`
	EventStart    *time.Time `json:"event_start"`
	EventEnd      *time.Time `json:"event_end"`
	ProjectID     *uint      `json:"project_id"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	task := models.Task{
		OwnerID:    ownerScope(r),
		Title:      strings.TrimSpace(*req.Title),
		Deadline:   req.Deadline,
		EventStart: req.EventStart,
		EventEnd:   req.EventEnd,
		ProjectID:  req.ProjectID,
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.DurationHours != nil {
		task.DurationHours = *req.DurationHours
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Importance != nil {
		task.Importance = *req.Importance
	}
	if req.Kind != nil {
		task.Kind = *req.Kind
	}

	if err := s.Store.CreateTask(r.Context(), &task); err != nil {
		s.fail(w, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	task, err := s.Store.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.fail(w, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := s.Store.UpdateTask(r.Context(), id, store.TaskUpdate{
		Title:         req.Title,
		Description:   req.Description,
		Deadline:      req.Deadline,
		DurationHours: req.DurationHours,
		Priority:      req.Priority,
		Importance:    req.Importance,
		Kind:          req.Kind,
		EventStart:    req.EventStart,
		EventEnd:      req.EventEnd,
		ProjectID:     req.ProjectID,
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.fail(w, "update task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.Store.DeleteTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.fail(w, "delete task", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- projects ---

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.Store.ListProjects(r.Context(), ownerScope(r))
	if err != nil {
		s.fail(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

type projectRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	project := models.Project{
		OwnerID: ownerScope(r),
		Name:    strings.TrimSpace(req.Name),
		Color:   req.Color,
	}
	if err := s.Store.CreateProject(r.Context(), &project); err != nil {
		s.fail(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	project, err := s.Store.GetProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		s.fail(w, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.Store.DeleteProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		s.fail(w, "delete project", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- events ---

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	start, err := queryTime(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	end, err := queryTime(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end")
		return
	}

	events, err := s.Store.ListEvents(r.Context(), ownerScope(r), start, end)
	if err != nil {
		s.fail(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.EventStart == nil || req.EventEnd == nil {
		writeError(w, http.StatusBadRequest, "event_start and event_end are required")
		return
	}
	if req.EventEnd.Before(*req.EventStart) {
		writeError(w, http.StatusBadRequest, "event_end must not precede event_start")
		return
	}

	event := models.Task{
		OwnerID:    ownerScope(r),
		Title:      strings.TrimSpace(*req.Title),
		Kind:       models.KindEvent,
		EventStart: req.EventStart,
		EventEnd:   req.EventEnd,
		ProjectID:  req.ProjectID,
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if err := s.Store.CreateTask(r.Context(), &event); err != nil {
		s.fail(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// --- stats ---

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	scope := ownerScope(r)
	total, err := s.Store.CountTasks(r.Context(), scope)
	if err != nil {
		s.fail(w, "count tasks", err)
		return
	}
	overdue, err := s.Store.CountOverdue(r.Context(), scope, time.Now())
	if err != nil {
		s.fail(w, "count overdue", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total": total, "overdue": overdue})
}

// --- helpers ---

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger().Error("request_failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
