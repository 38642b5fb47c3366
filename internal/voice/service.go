// AngelaMos | 2026
// service.go

package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bbigmic/dziennik-pracy/internal/assistant"
	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/journal"
	"github.com/bbigmic/dziennik-pracy/internal/storage"
	"github.com/bbigmic/dziennik-pracy/internal/task"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, p assistant.Prompt) (string, error)
}

type TaskCreator interface {
	Create(
		ctx context.Context,
		userID string,
		req task.CreateTaskRequest,
		source string,
		now time.Time,
	) (*task.Task, error)
}

type EntryCreator interface {
	Create(
		ctx context.Context,
		userID string,
		req journal.CreateEntryRequest,
		source string,
		now time.Time,
	) (*journal.Entry, error)
}

type AccessGate interface {
	Require(ctx context.Context, userID string, now time.Time) error
}

type Deps struct {
	Transcriber Transcriber
	Generator   Generator
	Tasks       TaskCreator
	Entries     EntryCreator
	Gate        AccessGate
	Recordings  storage.Store
	Location    *time.Location
	Logger      *slog.Logger
}

type Service struct {
	transcriber Transcriber
	generator   Generator
	tasks       TaskCreator
	entries     EntryCreator
	gate        AccessGate
	recordings  storage.Store
	loc         *time.Location
	logger      *slog.Logger
}

func NewService(deps Deps) *Service {
	s := &Service{
		transcriber: deps.Transcriber,
		generator:   deps.Generator,
		tasks:       deps.Tasks,
		entries:     deps.Entries,
		gate:        deps.Gate,
		recordings:  deps.Recordings,
		loc:         deps.Location,
		logger:      deps.Logger,
	}

	if s.recordings == nil {
		s.recordings = storage.Discard{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Recording is one uploaded audio clip.
type Recording struct {
	Audio    []byte
	MimeType string
}

func (s *Service) Transcribe(
	ctx context.Context,
	userID string,
	rec Recording,
	now time.Time,
) (string, error) {
	if len(rec.Audio) == 0 {
		return "", core.ValidationError("audio is required")
	}
	if s.transcriber == nil {
		return "", transcribeFailed(core.ErrNotConfigured)
	}

	ctx, span := core.StartSpan(ctx, "voice.transcribe",
		attribute.String("voice.mime_type", rec.MimeType),
		attribute.Int("voice.audio_bytes", len(rec.Audio)),
	)
	defer span.End()

	s.archive(ctx, userID, rec, now)

	text, err := s.transcriber.Transcribe(ctx, rec.Audio, rec.MimeType)
	if err != nil {
		core.SetSpanError(ctx, err)
		return "", transcribeFailed(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", transcribeFailed(errors.New("empty transcript"))
	}

	return text, nil
}

func (s *Service) DraftTask(
	ctx context.Context,
	transcript string,
	now time.Time,
) (TaskDraft, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return TaskDraft{}, core.ValidationError("text is required")
	}
	if s.generator == nil {
		return TaskDraft{}, draftFailed(core.ErrNotConfigured)
	}

	raw, err := s.generator.Generate(ctx, assistant.Prompt{
		System:    taskDraftPrompt(now.In(s.loc)),
		User:      transcript,
		JSON:      true,
		MaxTokens: draftMaxTokens,
	})
	if err != nil {
		return TaskDraft{}, draftFailed(err)
	}

	draft, err := ParseTaskDraft(raw)
	if err != nil {
		return TaskDraft{}, draftFailed(err)
	}

	return draft, nil
}

func (s *Service) CleanNote(
	ctx context.Context,
	transcript, date string,
) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", core.ValidationError("text is required")
	}
	if s.generator == nil {
		return "", noteFailed(core.ErrNotConfigured)
	}

	cleaned, err := s.generator.Generate(ctx, assistant.Prompt{
		System:    noteCleanupPrompt(date),
		User:      transcript,
		MaxTokens: noteMaxTokens,
	})
	if err != nil {
		return "", noteFailed(err)
	}

	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", noteFailed(errors.New("empty note"))
	}

	return cleaned, nil
}

// CleanNoteOrRaw returns the cleaned note, or the transcript verbatim when
// cleanup is unavailable. The flag reports which one was returned.
func (s *Service) CleanNoteOrRaw(
	ctx context.Context,
	transcript, date string,
) (string, bool, error) {
	cleaned, err := s.CleanNote(ctx, transcript, date)
	if err == nil {
		return cleaned, false, nil
	}
	if errors.Is(err, core.ErrInvalidInput) {
		return "", false, err
	}

	s.logger.Warn("note cleanup failed, keeping raw transcript", "error", err)
	return strings.TrimSpace(transcript), true, nil
}

type TaskCapture struct {
	Task       *task.Task
	Transcript string
}

func (s *Service) CaptureTask(
	ctx context.Context,
	userID string,
	rec Recording,
	now time.Time,
) (*TaskCapture, error) {
	if err := s.gate.Require(ctx, userID, now); err != nil {
		return nil, err
	}

	transcript, err := s.Transcribe(ctx, userID, rec, now)
	if err != nil {
		return nil, err
	}

	draft, err := s.DraftTask(ctx, transcript, now)
	if err != nil {
		return nil, err
	}

	created, err := s.tasks.Create(ctx, userID, draft.CreateRequest(), task.SourceVoice, now)
	if err != nil {
		return nil, err
	}

	return &TaskCapture{Task: created, Transcript: transcript}, nil
}

type NoteCapture struct {
	Entry      *journal.Entry
	Transcript string
	Fallback   bool
}

func (s *Service) CaptureNote(
	ctx context.Context,
	userID string,
	rec Recording,
	date string,
	now time.Time,
) (*NoteCapture, error) {
	if date == "" {
		date = now.In(s.loc).Format(core.DateLayout)
	}
	if !core.IsDate(date) {
		return nil, core.ValidationError("date must be a date in YYYY-MM-DD format")
	}

	if err := s.gate.Require(ctx, userID, now); err != nil {
		return nil, err
	}

	transcript, err := s.Transcribe(ctx, userID, rec, now)
	if err != nil {
		return nil, err
	}

	content, fallback, err := s.CleanNoteOrRaw(ctx, transcript, date)
	if err != nil {
		return nil, err
	}

	entry, err := s.entries.Create(ctx, userID, journal.CreateEntryRequest{
		Date:    date,
		Content: content,
	}, journal.SourceVoice, now)
	if err != nil {
		return nil, err
	}

	return &NoteCapture{Entry: entry, Transcript: transcript, Fallback: fallback}, nil
}

func (s *Service) archive(ctx context.Context, userID string, rec Recording, now time.Time) {
	key := storage.RecordingKey(userID, now, rec.MimeType)

	if err := s.recordings.Put(ctx, key, rec.MimeType, bytes.NewReader(rec.Audio)); err != nil {
		s.logger.Warn("failed to archive recording",
			"user_id", userID,
			"key", key,
			"error", err,
		)
	}
}

func transcribeFailed(err error) error {
	return core.NewAppError(
		fmt.Errorf("transcribe: %w", err),
		"could not transcribe the recording, please try again",
		http.StatusBadGateway,
		"UPSTREAM_ERROR",
	)
}

func draftFailed(err error) error {
	return core.NewAppError(
		fmt.Errorf("draft task: %w", err),
		"could not turn the recording into a task, please try again",
		http.StatusBadGateway,
		"UPSTREAM_ERROR",
	)
}

func noteFailed(err error) error {
	return core.NewAppError(
		fmt.Errorf("clean note: %w", err),
		"could not process the note, please try again",
		http.StatusBadGateway,
		"UPSTREAM_ERROR",
	)
}
