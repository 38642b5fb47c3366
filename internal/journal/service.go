// AngelaMos | 2026
// service.go

package journal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/metrics"
)

type AccessGate interface {
	Require(ctx context.Context, userID string, now time.Time) error
}

type Service struct {
	repo Repository
	gate AccessGate
}

func NewService(repo Repository, gate AccessGate) *Service {
	return &Service{
		repo: repo,
		gate: gate,
	}
}

func (s *Service) Create(
	ctx context.Context,
	userID string,
	req CreateEntryRequest,
	source string,
	now time.Time,
) (*Entry, error) {
	if err := s.gate.Require(ctx, userID, now); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, core.ValidationError("content is required")
	}
	if !core.IsDate(req.Date) {
		return nil, core.ValidationError("date must be a date in YYYY-MM-DD format")
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		UserID:    userID,
		EntryDate: req.Date,
		Content:   content,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	metrics.JournalEntriesCreated.WithLabelValues(source).Inc()

	return entry, nil
}

func (s *Service) List(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Day, error) {
	if params.From != "" && params.To != "" && params.From > params.To {
		return nil, core.ValidationError("from must not be after to")
	}

	entries, err := s.repo.List(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	return GroupByDate(entries), nil
}

func (s *Service) Update(
	ctx context.Context,
	userID, id string,
	req UpdateEntryRequest,
) (*Entry, error) {
	entry, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, core.ValidationError("content is required")
	}
	entry.Content = content

	if req.Date != nil {
		if !core.IsDate(*req.Date) {
			return nil, core.ValidationError("date must be a date in YYYY-MM-DD format")
		}
		entry.EntryDate = *req.Date
	}

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
