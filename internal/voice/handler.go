// AngelaMos | 2026
// handler.go

package voice

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/journal"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
	"github.com/bbigmic/dziennik-pracy/internal/task"
)

const audioField = "audio"

type ProcessTaskRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

type ProcessNoteRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
	Date string `json:"date" validate:"omitempty,date"`
}

type TranscriptResponse struct {
	Text string `json:"text"`
}

type DraftResponse struct {
	Task TaskDraft `json:"task"`
}

type NoteResponse struct {
	ProcessedText string `json:"processed_text"`
	Fallback      bool   `json:"fallback"`
}

type TaskCaptureResponse struct {
	Task       task.TaskResponse `json:"task"`
	Transcript string            `json:"transcript"`
}

type NoteCaptureResponse struct {
	Entry      journal.EntryResponse `json:"entry"`
	Transcript string                `json:"transcript"`
	Fallback   bool                  `json:"fallback"`
}

type Handler struct {
	service      *Service
	validator    *validator.Validate
	maxAudioSize int64
	now          func() time.Time
}

func NewHandler(service *Service, maxAudioSize int64) *Handler {
	return &Handler{
		service:      service,
		validator:    core.NewValidator(),
		maxAudioSize: maxAudioSize,
		now:          time.Now,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limiter func(http.Handler) http.Handler,
) {
	r.Route("/voice", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(limiter)

		r.Post("/transcribe", h.Transcribe)
		r.Post("/process-task", h.ProcessTask)
		r.Post("/process-note", h.ProcessNote)
		r.Post("/tasks", h.CaptureTask)
		r.Post("/notes", h.CaptureNote)
	})
}

func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rec, err := h.readRecording(w, r)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	text, err := h.service.Transcribe(r.Context(), userID, rec, h.now())
	if err != nil {
		core.WriteError(w, err, "recording")
		return
	}

	core.OK(w, TranscriptResponse{Text: text})
}

func (h *Handler) ProcessTask(w http.ResponseWriter, r *http.Request) {
	var req ProcessTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	draft, err := h.service.DraftTask(r.Context(), req.Text, h.now())
	if err != nil {
		core.WriteError(w, err, "task")
		return
	}

	core.OK(w, DraftResponse{Task: draft})
}

func (h *Handler) ProcessNote(w http.ResponseWriter, r *http.Request) {
	var req ProcessNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	date := req.Date
	if date == "" {
		date = h.now().In(h.service.loc).Format(core.DateLayout)
	}

	text, fallback, err := h.service.CleanNoteOrRaw(r.Context(), req.Text, date)
	if err != nil {
		core.WriteError(w, err, "note")
		return
	}

	core.OK(w, NoteResponse{ProcessedText: text, Fallback: fallback})
}

func (h *Handler) CaptureTask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rec, err := h.readRecording(w, r)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	capture, err := h.service.CaptureTask(r.Context(), userID, rec, h.now())
	if err != nil {
		core.WriteError(w, err, "task")
		return
	}

	core.Created(w, TaskCaptureResponse{
		Task:       task.ToTaskResponse(capture.Task),
		Transcript: capture.Transcript,
	})
}

func (h *Handler) CaptureNote(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rec, err := h.readRecording(w, r)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	date := strings.TrimSpace(r.FormValue("date"))

	capture, err := h.service.CaptureNote(r.Context(), userID, rec, date, h.now())
	if err != nil {
		core.WriteError(w, err, "journal entry")
		return
	}

	core.Created(w, NoteCaptureResponse{
		Entry:      journal.ToEntryResponse(capture.Entry),
		Transcript: capture.Transcript,
		Fallback:   capture.Fallback,
	})
}

func (h *Handler) readRecording(w http.ResponseWriter, r *http.Request) (Recording, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioSize+1<<20)

	if err := r.ParseMultipartForm(h.maxAudioSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Recording{}, core.ValidationError("audio file is too large")
		}
		return Recording{}, core.ValidationError("expected multipart form with an audio file")
	}

	file, header, err := r.FormFile(audioField)
	if err != nil {
		return Recording{}, core.ValidationError("audio is required")
	}
	defer file.Close() //nolint:errcheck // read-only multipart file

	if header.Size > h.maxAudioSize {
		return Recording{}, core.ValidationError("audio file is too large")
	}

	audio, err := io.ReadAll(io.LimitReader(file, h.maxAudioSize+1))
	if err != nil {
		return Recording{}, core.ValidationError("could not read audio file")
	}
	if int64(len(audio)) > h.maxAudioSize {
		return Recording{}, core.ValidationError("audio file is too large")
	}

	return Recording{Audio: audio, MimeType: audioMimeType(header.Header.Get("Content-Type"))}, nil
}

func audioMimeType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "audio/") {
		return "audio/webm"
	}
	return mediaType
}
