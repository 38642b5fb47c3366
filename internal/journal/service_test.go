// AngelaMos | 2026
// service_test.go

package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, entry *Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, userID, id string) (*Entry, error) {
	args := m.Called(ctx, userID, id)
	e, _ := args.Get(0).(*Entry)
	return e, args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, userID string, params ListParams) ([]Entry, error) {
	args := m.Called(ctx, userID, params)
	entries, _ := args.Get(0).([]Entry)
	return entries, args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, entry *Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockGate struct {
	mock.Mock
}

func (m *MockGate) Require(ctx context.Context, userID string, now time.Time) error {
	args := m.Called(ctx, userID, now)
	return args.Error(0)
}

var now = time.Date(2025, 1, 17, 18, 30, 0, 0, time.UTC)

func TestGroupByDate(t *testing.T) {
	base := time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)

	days := GroupByDate([]Entry{
		{ID: "c", EntryDate: "2025-01-17", CreatedAt: base.Add(24 * time.Hour)},
		{ID: "a", EntryDate: "2025-01-16", CreatedAt: base},
		{ID: "b", EntryDate: "2025-01-16", CreatedAt: base.Add(time.Hour)},
	})

	require.Len(t, days, 2)
	assert.Equal(t, "2025-01-17", days[0].Date)
	assert.Equal(t, "2025-01-16", days[1].Date)
	require.Len(t, days[1].Entries, 2)
	assert.Equal(t, "a", days[1].Entries[0].ID)
	assert.Equal(t, "b", days[1].Entries[1].ID)
}

func TestGroupByDateEmpty(t *testing.T) {
	days := GroupByDate(nil)

	require.NotNil(t, days)
	assert.Empty(t, days)
}

func TestCreateEntry(t *testing.T) {
	t.Run("stores trimmed content", func(t *testing.T) {
		repo := new(MockRepository)
		gate := new(MockGate)
		gate.On("Require", mock.Anything, "u1", now).Return(nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(e *Entry) bool {
			return e.Content == "Reviewed the migration plan." && e.EntryDate == "2025-01-17"
		})).Return(nil)

		entry, err := NewService(repo, gate).Create(context.Background(), "u1", CreateEntryRequest{
			Date:    "2025-01-17",
			Content: "  Reviewed the migration plan.\n",
		}, SourceManual, now)

		require.NoError(t, err)
		assert.Equal(t, "u1", entry.UserID)
		repo.AssertExpectations(t)
	})

	t.Run("denied without access", func(t *testing.T) {
		repo := new(MockRepository)
		gate := new(MockGate)
		gate.On("Require", mock.Anything, "u1", now).
			Return(fmt.Errorf("require access: %w", core.ErrAccessDenied))

		_, err := NewService(repo, gate).Create(context.Background(), "u1", CreateEntryRequest{
			Date:    "2025-01-17",
			Content: "x",
		}, SourceManual, now)

		require.ErrorIs(t, err, core.ErrAccessDenied)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("blank content", func(t *testing.T) {
		gate := new(MockGate)
		gate.On("Require", mock.Anything, "u1", now).Return(nil)

		_, err := NewService(new(MockRepository), gate).Create(context.Background(), "u1", CreateEntryRequest{
			Date:    "2025-01-17",
			Content: "   ",
		}, SourceManual, now)

		require.ErrorIs(t, err, core.ErrInvalidInput)
	})
}

func TestListRejectsInvertedRange(t *testing.T) {
	repo := new(MockRepository)

	_, err := NewService(repo, new(MockGate)).
		List(context.Background(), "u1", ListParams{From: "2025-02-01", To: "2025-01-01"})

	require.ErrorIs(t, err, core.ErrInvalidInput)
	repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateForeignEntry(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, "intruder", "e1").
		Return(nil, fmt.Errorf("get journal entry: %w", core.ErrNotFound))

	_, err := NewService(repo, new(MockGate)).
		Update(context.Background(), "intruder", "e1", UpdateEntryRequest{Content: "x"})

	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestListHandlerGroupsByDate(t *testing.T) {
	repo := new(MockRepository)
	repo.On("List", mock.Anything, "u1", ListParams{From: "2025-01-01", To: "2025-01-31"}).
		Return([]Entry{
			{ID: "b", EntryDate: "2025-01-17", Content: "second"},
			{ID: "a", EntryDate: "2025-01-16", Content: "first"},
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/journal?from=2025-01-01&to=2025-01-31", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "u1"))
	rr := httptest.NewRecorder()

	NewHandler(NewService(repo, new(MockGate))).List(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []Day `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "2025-01-17", resp.Data[0].Date)
	assert.Equal(t, "second", resp.Data[0].Entries[0].Content)
}

func TestListHandlerRejectsBadFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/journal?from=yesterday", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "u1"))
	rr := httptest.NewRecorder()

	NewHandler(NewService(new(MockRepository), new(MockGate))).List(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "from must be a date in YYYY-MM-DD format")
}

const entryID = "3d5a7c1e-8b2f-4e6a-9c0d-1f2e3a4b5c6d"

func deleteRequest(userID, id string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/journal/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestDeleteHandlerForeignEntry(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Delete", mock.Anything, "intruder", entryID).
		Return(fmt.Errorf("delete journal entry: %w", core.ErrNotFound))

	rr := httptest.NewRecorder()
	NewHandler(NewService(repo, new(MockGate))).Delete(rr, deleteRequest("intruder", entryID))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"NOT_FOUND"`)
}

func TestDeleteHandlerMalformedID(t *testing.T) {
	repo := new(MockRepository)

	rr := httptest.NewRecorder()
	NewHandler(NewService(repo, new(MockGate))).Delete(rr, deleteRequest("u1", "not-a-uuid"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"NOT_FOUND"`)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
