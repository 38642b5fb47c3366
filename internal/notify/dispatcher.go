// AngelaMos | 2026
// dispatcher.go

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/metrics"
	"github.com/bbigmic/dziennik-pracy/internal/push"
	"github.com/bbigmic/dziennik-pracy/internal/task"
)

const (
	lockName       = "notify-dispatch"
	maxParallelism = 8
)

type TaskStore interface {
	ListPendingDeadlines(ctx context.Context, from, to string) ([]task.Task, error)
	ClaimNotification(ctx context.Context, id string, at time.Time) (bool, error)
	ReleaseNotification(ctx context.Context, id string, at time.Time) error
}

type DeviceStore interface {
	ListByUser(ctx context.Context, userID string) ([]push.Subscription, error)
	DeleteByID(ctx context.Context, id string) error
}

type Sender interface {
	Send(
		ctx context.Context,
		sub push.Subscription,
		payload []byte,
		urgency push.Urgency,
	) error
}

type Locker interface {
	Acquire(
		ctx context.Context,
		key string,
		ttl time.Duration,
	) (func(context.Context), bool, error)
}

type Result struct {
	Success           bool   `json:"success"`
	TasksFound        int    `json:"tasksFound"`
	NotificationsSent int    `json:"notificationsSent"`
	Errors            int    `json:"errors"`
	Message           string `json:"message,omitempty"`
}

type Options struct {
	Enabled  bool
	Location *time.Location
	Window   Window
	LockTTL  time.Duration
	Logger   *slog.Logger
}

type Dispatcher struct {
	tasks   TaskStore
	devices DeviceStore
	sender  Sender
	locker  Locker
	enabled bool
	loc     *time.Location
	window  Window
	lockTTL time.Duration
	logger  *slog.Logger
}

// NewDispatcher wires the reminder job. locker may be nil, in which case
// runs rely on the per-task claim alone.
func NewDispatcher(
	tasks TaskStore,
	devices DeviceStore,
	sender Sender,
	locker Locker,
	opts Options,
) *Dispatcher {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		tasks:   tasks,
		devices: devices,
		sender:  sender,
		locker:  locker,
		enabled: opts.Enabled,
		loc:     loc,
		window:  opts.Window,
		lockTTL: opts.LockTTL,
		logger:  logger,
	}
}

// Run performs one dispatch pass at now. It is safe to call concurrently
// and repeatedly: a task is sent at most once per deadline occurrence.
func (d *Dispatcher) Run(ctx context.Context, now time.Time) (Result, error) {
	ctx, span := core.StartSpan(ctx, "notify.dispatch")
	defer span.End()

	if !d.enabled {
		metrics.NotifyRuns.WithLabelValues("disabled").Inc()
		return Result{Success: true, Message: "push notifications are not configured"}, nil
	}

	if d.locker != nil {
		release, acquired, err := d.locker.Acquire(ctx, core.RedisKey("lock", lockName), d.lockTTL)
		switch {
		case err != nil:
			d.logger.Warn("dispatch lock unavailable, continuing without it", "error", err)
		case !acquired:
			metrics.NotifyRuns.WithLabelValues("skipped").Inc()
			return Result{Success: true, Message: "another dispatch is already running"}, nil
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	from, to := d.window.Dates(now, d.loc)
	candidates, err := d.tasks.ListPendingDeadlines(ctx, from, to)
	if err != nil {
		metrics.NotifyRuns.WithLabelValues("failed").Inc()
		core.SetSpanError(ctx, err)
		return Result{}, fmt.Errorf("dispatch: %w", err)
	}

	// Postgres keeps microseconds; the release compares against this value.
	stamp := now.Truncate(time.Microsecond)
	result := Result{Success: true}

	for _, t := range candidates {
		instant, ok := DeadlineInstant(t, d.loc)
		if !ok || !d.window.Contains(instant, now) {
			continue
		}

		result.TasksFound++

		sent, failed, err := d.dispatchTask(ctx, t, instant, now, stamp)
		if err != nil {
			d.logger.Error("task reminder failed", "task_id", t.ID, "error", err)
			result.Errors++
			continue
		}

		result.NotificationsSent += sent
		result.Errors += failed
	}

	span.SetAttributes(
		attribute.Int("notify.candidates", len(candidates)),
		attribute.Int("notify.tasks_found", result.TasksFound),
		attribute.Int("notify.sent", result.NotificationsSent),
		attribute.Int("notify.errors", result.Errors),
	)
	metrics.NotifyRuns.WithLabelValues("completed").Inc()

	d.logger.Info("dispatch finished",
		"tasks_found", result.TasksFound,
		"notifications_sent", result.NotificationsSent,
		"errors", result.Errors,
	)

	return result, nil
}

func (d *Dispatcher) dispatchTask(
	ctx context.Context,
	t task.Task,
	instant, now, stamp time.Time,
) (sent, failed int, err error) {
	devices, err := d.devices.ListByUser(ctx, t.UserID)
	if err != nil {
		return 0, 0, fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		d.logger.Debug("owner has no devices", "task_id", t.ID, "user_id", t.UserID)
		return 0, 0, nil
	}

	claimed, err := d.tasks.ClaimNotification(ctx, t.ID, stamp)
	if err != nil {
		return 0, 0, err
	}
	if !claimed {
		return 0, 0, nil
	}

	payload, err := json.Marshal(NewPayload(t, instant, now))
	if err != nil {
		d.release(ctx, t.ID, stamp)
		return 0, 0, fmt.Errorf("encode payload: %w", err)
	}

	urgency := push.UrgencyNormal
	if t.IsHighPriority() {
		urgency = push.UrgencyHigh
	}

	outcomes := make([]error, len(devices))

	var g errgroup.Group
	g.SetLimit(maxParallelism)
	for i, device := range devices {
		g.Go(func() error {
			outcomes[i] = d.sender.Send(ctx, device, payload, urgency)
			return nil
		})
	}
	_ = g.Wait()

	for i, sendErr := range outcomes {
		device := devices[i]

		if sendErr == nil {
			sent++
			metrics.NotifySends.WithLabelValues("sent").Inc()
			continue
		}

		failed++

		if push.IsPermanent(sendErr) {
			metrics.NotifySends.WithLabelValues("gone").Inc()
			d.logger.Info("removing dead push subscription",
				"subscription_id", device.ID,
				"user_id", device.UserID,
				"error", sendErr,
			)
			if err := d.devices.DeleteByID(ctx, device.ID); err != nil {
				d.logger.Error("remove push subscription", "subscription_id", device.ID, "error", err)
			}
			continue
		}

		metrics.NotifySends.WithLabelValues("failed").Inc()
		d.logger.Warn("push send failed",
			"subscription_id", device.ID,
			"task_id", t.ID,
			"error", sendErr,
		)
	}

	if sent == 0 {
		d.release(ctx, t.ID, stamp)
	}

	return sent, failed, nil
}

func (d *Dispatcher) release(ctx context.Context, taskID string, stamp time.Time) {
	if err := d.tasks.ReleaseNotification(context.WithoutCancel(ctx), taskID, stamp); err != nil {
		d.logger.Error("release notification claim", "task_id", taskID, "error", err)
	}
}
