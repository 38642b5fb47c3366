// AngelaMos | 2026
// service_test.go

package task

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bbigmic/dziennik-pracy/internal/core"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, task *Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, userID, id string) (*Task, error) {
	args := m.Called(ctx, userID, id)
	t, _ := args.Get(0).(*Task)
	return t, args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID string) ([]Task, error) {
	args := m.Called(ctx, userID)
	tasks, _ := args.Get(0).([]Task)
	return tasks, args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, task *Task, resetNotification bool) error {
	args := m.Called(ctx, task, resetNotification)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockRepository) ListPendingDeadlines(ctx context.Context, from, to string) ([]Task, error) {
	args := m.Called(ctx, from, to)
	tasks, _ := args.Get(0).([]Task)
	return tasks, args.Error(1)
}

func (m *MockRepository) ClaimNotification(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ReleaseNotification(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockRepository) Stats(ctx context.Context) (Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(Stats), args.Error(1)
}

type MockGate struct {
	mock.Mock
}

func (m *MockGate) Require(ctx context.Context, userID string, now time.Time) error {
	args := m.Called(ctx, userID, now)
	return args.Error(0)
}

var now = time.Date(2025, 1, 17, 8, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestCreateAppliesDefaults(t *testing.T) {
	repo := new(MockRepository)
	gate := new(MockGate)
	gate.On("Require", mock.Anything, "u1", now).Return(nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)

	task, err := NewService(repo, gate).
		Create(context.Background(), "u1", CreateTaskRequest{Title: "  Write report "}, SourceManual, now)

	require.NoError(t, err)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, CategoryTodo, task.Category)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.False(t, task.Completed)
	assert.Nil(t, task.Description)
	assert.Nil(t, task.Deadline)
	assert.Nil(t, task.DeadlineTime)
	assert.Nil(t, task.NotificationSentAt)
	assert.Equal(t, "u1", task.UserID)
	assert.NotEmpty(t, task.ID)
}

func TestCreateDropsTimeWithoutDate(t *testing.T) {
	repo := new(MockRepository)
	gate := new(MockGate)
	gate.On("Require", mock.Anything, "u1", now).Return(nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(t *Task) bool {
		return t.Deadline == nil && t.DeadlineTime == nil
	})).Return(nil)

	task, err := NewService(repo, gate).Create(context.Background(), "u1", CreateTaskRequest{
		Title:        "Call client",
		DeadlineTime: strPtr("10:00"),
	}, SourceManual, now)

	require.NoError(t, err)
	assert.Nil(t, task.DeadlineTime)
	repo.AssertExpectations(t)
}

func TestCreateRejectsBadSchedule(t *testing.T) {
	tests := []struct {
		name         string
		deadline     *string
		deadlineTime *string
	}{
		{"impossible date", strPtr("2025-02-30"), nil},
		{"wrong date format", strPtr("17.01.2025"), nil},
		{"hour out of range", strPtr("2025-01-17"), strPtr("24:00")},
		{"missing leading zero", strPtr("2025-01-17"), strPtr("9:05")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			gate := new(MockGate)
			gate.On("Require", mock.Anything, "u1", now).Return(nil)

			_, err := NewService(repo, gate).Create(context.Background(), "u1", CreateTaskRequest{
				Title:        "x",
				Deadline:     tt.deadline,
				DeadlineTime: tt.deadlineTime,
			}, SourceManual, now)

			require.ErrorIs(t, err, core.ErrInvalidInput)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateIsGated(t *testing.T) {
	repo := new(MockRepository)
	gate := new(MockGate)
	gate.On("Require", mock.Anything, "u1", now).
		Return(fmt.Errorf("require access: %w", core.ErrAccessDenied))

	_, err := NewService(repo, gate).
		Create(context.Background(), "u1", CreateTaskRequest{Title: "x"}, SourceManual, now)

	require.ErrorIs(t, err, core.ErrAccessDenied)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateResetsNotificationMarker(t *testing.T) {
	sentAt := now.Add(-time.Hour)

	existing := func() *Task {
		return &Task{
			ID:                 "t1",
			UserID:             "u1",
			Title:              "Ship release",
			Category:           CategoryTodo,
			Priority:           PriorityHigh,
			Completed:          true,
			Deadline:           strPtr("2025-01-17"),
			DeadlineTime:       strPtr("09:00"),
			NotificationSentAt: &sentAt,
		}
	}

	completed := false

	tests := []struct {
		name      string
		req       UpdateTaskRequest
		wantReset bool
	}{
		{"title only", UpdateTaskRequest{Title: strPtr("Ship release v2")}, false},
		{"same deadline resent", UpdateTaskRequest{Deadline: Set("2025-01-17")}, false},
		{"deadline moved", UpdateTaskRequest{Deadline: Set("2025-01-18")}, true},
		{"time moved", UpdateTaskRequest{DeadlineTime: Set("10:30")}, true},
		{"deadline cleared", UpdateTaskRequest{Deadline: Null[string]()}, true},
		{"reopened", UpdateTaskRequest{Completed: &completed}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			repo.On("GetByID", mock.Anything, "u1", "t1").Return(existing(), nil)
			repo.On("Update", mock.Anything, mock.AnythingOfType("*task.Task"), tt.wantReset).Return(nil)

			_, err := NewService(repo, new(MockGate)).Update(context.Background(), "u1", "t1", tt.req)

			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestUpdateClearingDeadlineClearsTime(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, "u1", "t1").Return(&Task{
		ID:           "t1",
		UserID:       "u1",
		Title:        "x",
		Deadline:     strPtr("2025-01-17"),
		DeadlineTime: strPtr("09:00"),
	}, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(t *Task) bool {
		return t.Deadline == nil && t.DeadlineTime == nil
	}), true).Return(nil)

	task, err := NewService(repo, new(MockGate)).
		Update(context.Background(), "u1", "t1", UpdateTaskRequest{Deadline: Null[string]()})

	require.NoError(t, err)
	assert.Nil(t, task.DeadlineTime)
}

func TestUpdateForeignTaskIsNotFound(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, "intruder", "t1").
		Return(nil, fmt.Errorf("get task: %w", core.ErrNotFound))

	_, err := NewService(repo, new(MockGate)).
		Update(context.Background(), "intruder", "t1", UpdateTaskRequest{Title: strPtr("mine now")})

	require.ErrorIs(t, err, core.ErrNotFound)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateIsNotGated(t *testing.T) {
	repo := new(MockRepository)
	gate := new(MockGate)
	repo.On("GetByID", mock.Anything, "u1", "t1").Return(&Task{ID: "t1", UserID: "u1", Title: "x"}, nil)
	repo.On("Update", mock.Anything, mock.Anything, false).Return(nil)

	_, err := NewService(repo, gate).
		Update(context.Background(), "u1", "t1", UpdateTaskRequest{Priority: strPtr(PriorityLow)})

	require.NoError(t, err)
	gate.AssertNotCalled(t, "Require", mock.Anything, mock.Anything, mock.Anything)
}
