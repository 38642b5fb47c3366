// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/task"
	"github.com/bbigmic/dziennik-pracy/internal/user"
)

type UserCounter interface {
	CountActive(ctx context.Context, now time.Time) (user.ActiveCounts, error)
}

type TaskCounter interface {
	Stats(ctx context.Context) (task.Stats, error)
}

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type SessionRevoker interface {
	LogoutAll(ctx context.Context, userID string) error
}

type HandlerConfig struct {
	Users      UserCounter
	Tasks      TaskCounter
	Journal    Counter
	Devices    Counter
	Sessions   SessionRevoker
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
}

type Handler struct {
	cfg HandlerConfig
	now func() time.Time
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg, now: time.Now}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetAppStats)
		r.Get("/stats/system", h.GetSystemStats)
		r.Delete("/sessions/{userID}", h.RevokeSessions)
	})
}

// GetAppStats reports usage of the product itself: accounts by access
// state, tasks, journal entries and registered devices.
func (h *Handler) GetAppStats(w http.ResponseWriter, r *http.Request) {
	var stats AppStatsResponse

	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		counts, err := h.cfg.Users.CountActive(ctx, h.now())
		stats.Users = counts
		return err
	})
	g.Go(func() error {
		taskStats, err := h.cfg.Tasks.Stats(ctx)
		stats.Tasks = taskStats
		return err
	})
	g.Go(func() error {
		n, err := h.cfg.Journal.Count(ctx)
		stats.JournalEntries = n
		return err
	})
	g.Go(func() error {
		n, err := h.cfg.Devices.Count(ctx)
		stats.PushDevices = n
		return err
	})

	if err := g.Wait(); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, stats)
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	core.OK(w, SystemStatsResponse{
		Database: h.dbStats(),
		Redis:    h.redisStats(),
		Runtime: RuntimeStats{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
			MemAlloc:     memStats.Alloc,
			MemSys:       memStats.Sys,
			NumGC:        memStats.NumGC,
		},
	})
}

func (h *Handler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !core.ValidID(userID) {
		core.NotFound(w, "user")
		return
	}

	if err := h.cfg.Sessions.LogoutAll(r.Context(), userID); err != nil {
		core.WriteError(w, err, "user")
		return
	}

	core.NoContent(w)
}

func (h *Handler) dbStats() *DBPoolStats {
	if h.cfg.DBStats == nil {
		return nil
	}

	stats := h.cfg.DBStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) redisStats() *RedisPoolStats {
	if h.cfg.RedisStats == nil {
		return nil
	}

	stats := h.cfg.RedisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

type AppStatsResponse struct {
	Users          user.ActiveCounts `json:"users"`
	Tasks          task.Stats        `json:"tasks"`
	JournalEntries int               `json:"journal_entries"`
	PushDevices    int               `json:"push_devices"`
}

type SystemStatsResponse struct {
	Database *DBPoolStats    `json:"database,omitempty"`
	Redis    *RedisPoolStats `json:"redis,omitempty"`
	Runtime  RuntimeStats    `json:"runtime"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
