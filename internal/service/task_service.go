package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// TaskService coordinates owner-scoped task workflows.
type TaskService struct {
	tasks      repository.TaskRepository
	dispatcher events.Dispatcher
}

// TaskCreateInput describes task creation payload.
type TaskCreateInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
}

// TaskUpdateInput describes a partial task update; nil fields are untouched.
type TaskUpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
}

// TaskListFilter describes listing filters.
type TaskListFilter struct {
	Search string
	Status string
}

// NewTaskService constructs the service.
func NewTaskService(tasks repository.TaskRepository, dispatcher events.Dispatcher) *TaskService {
	return &TaskService{tasks: tasks, dispatcher: dispatcher}
}

// List returns the caller's tasks, optionally filtered, newest first.
func (s *TaskService) List(ctx context.Context, ownerID string, filter TaskListFilter) ([]domain.Task, error) {
	repoFilter := repository.TaskFilter{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		repoFilter.SearchTerm = &search
	}
	if filter.Status != "" {
		status := domain.TaskStatus(filter.Status)
		repoFilter.Status = &status
	}

	tasks, err := s.tasks.ListByOwner(ctx, ownerID, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tasks, nil
}

// Create persists a new task owned by the caller.
func (s *TaskService) Create(ctx context.Context, ownerID string, input TaskCreateInput) (*domain.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}

	status := input.Status
	if status == "" {
		status = domain.TaskStatusPending
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown task status", map[string]any{"status": string(status)})
	}

	task := &domain.Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: input.Description,
		Status:      status,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTaskCreated, ownerID, events.NewTaskPayload(task))
	return task, nil
}

// Update applies the supplied fields after existence and ownership checks.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID string, input TaskUpdateInput) (*domain.Task, error) {
	task, err := s.loadOwned(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title must not be empty", nil)
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("unknown task status", map[string]any{"status": string(*input.Status)})
		}
		task.Status = *input.Status
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTaskUpdated, ownerID, events.NewTaskPayload(task))
	return task, nil
}

// Delete removes the task after existence and ownership checks.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	task, err := s.loadOwned(ctx, ownerID, taskID)
	if err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTaskDeleted, ownerID, events.TaskDeletedPayload{ID: task.ID})
	return nil
}

func (s *TaskService) loadOwned(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("task", map[string]any{"id": taskID})
		}
		return nil, apperrors.MapError(err)
	}
	if task.OwnerID != ownerID {
		return nil, apperrors.NewForbidden("not authorized to access this task")
	}
	return task, nil
}

func (s *TaskService) publish(ctx context.Context, eventType events.EventType, ownerID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		OwnerID:   ownerID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
