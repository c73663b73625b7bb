package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
)

type mockTaskRepo struct {
	createFn      func(ctx context.Context, task *domain.Task) error
	updateFn      func(ctx context.Context, task *domain.Task) error
	deleteFn      func(ctx context.Context, id string) error
	getByIDFn     func(ctx context.Context, id string) (*domain.Task, error)
	listByOwnerFn func(ctx context.Context, ownerID string, filter repository.TaskFilter) ([]domain.Task, error)
}

func (m *mockTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	if m.createFn != nil {
		return m.createFn(ctx, task)
	}
	task.ID = "task-1"
	return nil
}

func (m *mockTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, task)
	}
	return nil
}

func (m *mockTaskRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockTaskRepo) ListByOwner(ctx context.Context, ownerID string, filter repository.TaskFilter) ([]domain.Task, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID, filter)
	}
	return nil, nil
}

type recordingDispatcher struct {
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func TestCreateRequiresTitle(t *testing.T) {
	created := false
	repo := &mockTaskRepo{
		createFn: func(ctx context.Context, task *domain.Task) error {
			created = true
			return nil
		},
	}
	svc := NewTaskService(repo, nil)

	_, err := svc.Create(context.Background(), "user-1", TaskCreateInput{Title: "   "})
	assertDomainError(t, err, "VALIDATION_FAILED", 400)
	assert.False(t, created, "store count must be unchanged")
}

func TestCreateDefaultsToPending(t *testing.T) {
	repo := &mockTaskRepo{}
	dispatcher := &recordingDispatcher{}
	svc := NewTaskService(repo, dispatcher)

	task, err := svc.Create(context.Background(), "user-1", TaskCreateInput{
		Title:       "Buy milk",
		Description: "2%",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, "user-1", task.OwnerID)

	require.Len(t, dispatcher.published, 1)
	assert.Equal(t, events.EventTaskCreated, dispatcher.published[0].Type)
	assert.Equal(t, "user-1", dispatcher.published[0].OwnerID)
}

func TestCreateRejectsUnknownStatus(t *testing.T) {
	svc := NewTaskService(&mockTaskRepo{}, nil)

	_, err := svc.Create(context.Background(), "user-1", TaskCreateInput{
		Title:  "Buy milk",
		Status: domain.TaskStatus("archived"),
	})
	assertDomainError(t, err, "VALIDATION_FAILED", 400)
}

func TestUpdateStatusOnlyPreservesOtherFields(t *testing.T) {
	stored := domain.Task{
		ID:          "task-1",
		OwnerID:     "user-1",
		Title:       "Buy milk",
		Description: "2%",
		Status:      domain.TaskStatusPending,
	}
	var updated *domain.Task
	repo := &mockTaskRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Task, error) {
			clone := stored
			return &clone, nil
		},
		updateFn: func(ctx context.Context, task *domain.Task) error {
			updated = task
			return nil
		},
	}
	dispatcher := &recordingDispatcher{}
	svc := NewTaskService(repo, dispatcher)

	status := domain.TaskStatusCompleted
	task, err := svc.Update(context.Background(), "user-1", "task-1", TaskUpdateInput{Status: &status})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, "2%", task.Description)

	require.Len(t, dispatcher.published, 1)
	assert.Equal(t, events.EventTaskUpdated, dispatcher.published[0].Type)
}

func TestUpdateRejectsEmptyTitle(t *testing.T) {
	repo := &mockTaskRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, OwnerID: "user-1", Title: "Buy milk"}, nil
		},
	}
	svc := NewTaskService(repo, nil)

	empty := ""
	_, err := svc.Update(context.Background(), "user-1", "task-1", TaskUpdateInput{Title: &empty})
	assertDomainError(t, err, "VALIDATION_FAILED", 400)
}

func TestUpdateNotFound(t *testing.T) {
	svc := NewTaskService(&mockTaskRepo{}, nil)

	_, err := svc.Update(context.Background(), "user-1", "missing", TaskUpdateInput{})
	assertDomainError(t, err, "NOT_FOUND", 404)
}

func TestUpdateWrongOwnerRejected(t *testing.T) {
	mutated := false
	repo := &mockTaskRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, OwnerID: "user-1", Title: "Buy milk"}, nil
		},
		updateFn: func(ctx context.Context, task *domain.Task) error {
			mutated = true
			return nil
		},
	}
	svc := NewTaskService(repo, nil)

	title := "Hijacked"
	_, err := svc.Update(context.Background(), "user-2", "task-1", TaskUpdateInput{Title: &title})
	assertDomainError(t, err, "FORBIDDEN", 401)
	assert.False(t, mutated, "task must not be mutated")
}

func TestDeleteWrongOwnerRejected(t *testing.T) {
	deleted := false
	repo := &mockTaskRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, OwnerID: "user-1"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	svc := NewTaskService(repo, nil)

	err := svc.Delete(context.Background(), "user-2", "task-1")
	assertDomainError(t, err, "FORBIDDEN", 401)
	assert.False(t, deleted)
}

func TestDeletePublishesEvent(t *testing.T) {
	repo := &mockTaskRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, OwnerID: "user-1"}, nil
		},
	}
	dispatcher := &recordingDispatcher{}
	svc := NewTaskService(repo, dispatcher)

	err := svc.Delete(context.Background(), "user-1", "task-1")
	require.NoError(t, err)

	require.Len(t, dispatcher.published, 1)
	assert.Equal(t, events.EventTaskDeleted, dispatcher.published[0].Type)
	payload, ok := dispatcher.published[0].Payload.(events.TaskDeletedPayload)
	require.True(t, ok)
	assert.Equal(t, "task-1", payload.ID)
}

func TestListPassesFilters(t *testing.T) {
	var gotOwner string
	var gotFilter repository.TaskFilter
	repo := &mockTaskRepo{
		listByOwnerFn: func(ctx context.Context, ownerID string, filter repository.TaskFilter) ([]domain.Task, error) {
			gotOwner = ownerID
			gotFilter = filter
			return []domain.Task{{ID: "task-1", OwnerID: ownerID}}, nil
		},
	}
	svc := NewTaskService(repo, nil)

	tasks, err := svc.List(context.Background(), "user-1", TaskListFilter{Search: " milk ", Status: "completed"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	assert.Equal(t, "user-1", gotOwner)
	require.NotNil(t, gotFilter.SearchTerm)
	assert.Equal(t, "milk", *gotFilter.SearchTerm)
	require.NotNil(t, gotFilter.Status)
	assert.Equal(t, domain.TaskStatusCompleted, *gotFilter.Status)
}
