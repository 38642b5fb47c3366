// AngelaMos | 2026
// storage.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bbigmic/dziennik-pracy/internal/config"
)

// Store archives raw voice recordings.
type Store interface {
	Put(ctx context.Context, key, contentType string, data io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var ErrObjectNotFound = errors.New("object not found")

const (
	DriverLocal = "local"
	DriverS3    = "s3"
	DriverNone  = "none"
)

func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case DriverLocal:
		return NewLocal(cfg.LocalPath)
	case DriverS3:
		return NewS3(ctx, cfg)
	case DriverNone, "":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

// RecordingKey builds a unique object key grouped by owner and day.
func RecordingKey(userID string, at time.Time, contentType string) string {
	return path.Join(
		"recordings",
		userID,
		at.UTC().Format("2006-01-02"),
		uuid.New().String()+extensionFor(contentType),
	)
}

func extensionFor(contentType string) string {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))

	switch mediaType {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	default:
		return ".bin"
	}
}

// Discard accepts and drops every recording.
type Discard struct{}

func (Discard) Put(_ context.Context, _, _ string, data io.Reader) error {
	_, err := io.Copy(io.Discard, data)
	return err
}

func (Discard) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("get %s: %w", key, ErrObjectNotFound)
}

func (Discard) Delete(context.Context, string) error {
	return nil
}
