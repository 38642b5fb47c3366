// AngelaMos | 2026
// dispatcher_test.go

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bbigmic/dziennik-pracy/internal/push"
	"github.com/bbigmic/dziennik-pracy/internal/task"
)

type memoryTasks struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
	err   error
}

func newMemoryTasks(tasks ...task.Task) *memoryTasks {
	m := &memoryTasks{tasks: make(map[string]*task.Task)}
	for i := range tasks {
		t := tasks[i]
		m.tasks[t.ID] = &t
	}
	return m
}

func (m *memoryTasks) ListPendingDeadlines(
	_ context.Context,
	from, to string,
) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	var out []task.Task
	for _, t := range m.tasks {
		if t.Completed || t.NotificationSentAt != nil || t.Deadline == nil {
			continue
		}
		if *t.Deadline < from || *t.Deadline > to {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *memoryTasks) ClaimNotification(
	_ context.Context,
	id string,
	at time.Time,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.NotificationSentAt != nil || t.Completed {
		return false, nil
	}
	t.NotificationSentAt = &at
	return true, nil
}

func (m *memoryTasks) ReleaseNotification(
	_ context.Context,
	id string,
	at time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if ok && t.NotificationSentAt != nil && t.NotificationSentAt.Equal(at) {
		t.NotificationSentAt = nil
	}
	return nil
}

func (m *memoryTasks) marker(id string) *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id].NotificationSentAt
}

type memoryDevices struct {
	mu      sync.Mutex
	devices []push.Subscription
}

func (m *memoryDevices) ListByUser(
	_ context.Context,
	userID string,
) ([]push.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []push.Subscription
	for _, d := range m.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryDevices) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.devices {
		if d.ID == id {
			m.devices = append(m.devices[:i], m.devices[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryDevices) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d.ID)
	}
	return out
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(
	ctx context.Context,
	sub push.Subscription,
	payload []byte,
	urgency push.Urgency,
) error {
	args := m.Called(ctx, sub, payload, urgency)
	return args.Error(0)
}

type stubLocker struct {
	acquired bool
	err      error
	released bool
}

func (s *stubLocker) Acquire(
	_ context.Context,
	_ string,
	_ time.Duration,
) (func(context.Context), bool, error) {
	if s.err != nil || !s.acquired {
		return nil, false, s.err
	}
	return func(context.Context) { s.released = true }, true, nil
}

var (
	dispatchNow = time.Date(2025, 1, 17, 9, 5, 0, 0, time.UTC)
	testWindow  = Window{MinLead: 50 * time.Minute, MaxLead: 70 * time.Minute}
)

func dueTask(id, userID string) task.Task {
	return task.Task{
		ID:           id,
		UserID:       userID,
		Title:        "Call the supplier",
		Category:     task.CategoryTodo,
		Priority:     task.PriorityHigh,
		Deadline:     strPtr("2025-01-17"),
		DeadlineTime: strPtr("10:00"),
	}
}

func device(id, userID string) push.Subscription {
	return push.Subscription{
		ID:       id,
		UserID:   userID,
		Endpoint: "https://push.example.com/" + id,
		P256dh:   "key",
		Auth:     "auth",
	}
}

func newTestDispatcher(
	tasks TaskStore,
	devices DeviceStore,
	sender Sender,
	locker Locker,
) *Dispatcher {
	return NewDispatcher(tasks, devices, sender, locker, Options{
		Enabled:  true,
		Location: time.UTC,
		Window:   testWindow,
		LockTTL:  time.Minute,
	})
}

func bySubscription(id string) any {
	return mock.MatchedBy(func(s push.Subscription) bool { return s.ID == id })
}

func TestRunSelectsOnlyTasksInsideTheWindow(t *testing.T) {
	later := dueTask("later", "u1")
	later.DeadlineTime = strPtr("11:35")

	tasks := newMemoryTasks(dueTask("soon", "u1"), later)
	devices := &memoryDevices{devices: []push.Subscription{device("d1", "u1")}}

	sender := new(MockSender)
	sender.On("Send", mock.Anything, bySubscription("d1"), mock.Anything, push.UrgencyHigh).
		Return(nil).Once()

	result, err := newTestDispatcher(tasks, devices, sender, nil).Run(context.Background(), dispatchNow)

	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, TasksFound: 1, NotificationsSent: 1}, result)
	assert.NotNil(t, tasks.marker("soon"))
	assert.Nil(t, tasks.marker("later"))
	sender.AssertExpectations(t)
}

func TestRunWideWindowReachesLaterDates(t *testing.T) {
	dayAfterTomorrow := dueTask("t1", "u1")
	dayAfterTomorrow.Deadline = strPtr("2025-01-19")

	tasks := newMemoryTasks(dayAfterTomorrow)
	devices := &memoryDevices{devices: []push.Subscription{device("d1", "u1")}}

	sender := new(MockSender)
	sender.On("Send", mock.Anything, bySubscription("d1"), mock.Anything, push.UrgencyHigh).
		Return(nil).Once()

	dispatcher := NewDispatcher(tasks, devices, sender, nil, Options{
		Enabled:  true,
		Location: time.UTC,
		Window:   Window{MinLead: 47 * time.Hour, MaxLead: 49 * time.Hour},
		LockTTL:  time.Minute,
	})

	result, err := dispatcher.Run(context.Background(), dispatchNow)

	require.NoError(t, err)
	assert.Equal(t, 1, result.TasksFound)
	assert.Equal(t, 1, result.NotificationsSent)
	sender.AssertExpectations(t)
}

func TestRunNotSelectedTwoAndAHalfHoursAhead(t *testing.T) {
	tasks := newMemoryTasks(dueTask("t1", "u1"))
	devices := &memoryDevices{devices: []push.Subscription{device("d1", "u1")}}
	sender := new(MockSender)

	early := time.Date(2025, 1, 17, 8, 0, 0, 0, time.UTC)
	result, err := newTestDispatcher(tasks, devices, sender, nil).Run(context.Background(), early)

	require.NoError(t, err)
	assert.Zero(t, result.TasksFound)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunEndOfDayDeadline(t *testing.T) {
	allDay := dueTask("t1", "u1")
	allDay.DeadlineTime = nil

	tasks := newMemoryTasks(allDay)
	devices := &memoryDevices{devices: []push.Subscription{device("d1", "u1")}}

	var payload Payload
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, json.Unmarshal(args.Get(2).([]byte), &payload))
		}).
		Return(nil)

	evening := time.Date(2025, 1, 17, 23, 0, 0, 0, time.UTC)
	result, err := newTestDispatcher(tasks, devices, sender, nil).Run(context.Background(), evening)

	require.NoError(t, err)
	assert.Equal(t, 1, result.NotificationsSent)
	assert.Equal(t, "🔴 Deadline at end of day, in 1 h", payload.Title)
	assert.Equal(t, "deadline-t1", payload.Tag)
}

func TestRunIsolatesDeviceFailures(t *testing.T) {
	tasks := newMemoryTasks(dueTask("t1", "u1"))
	devices := &memoryDevices{devices: []push.Subscription{
		device("gone", "u1"),
		device("ok", "u1"),
	}}

	sender := new(MockSender)
	sender.On("Send", mock.Anything, bySubscription("gone"), mock.Anything, mock.Anything).
		Return(&push.DeliveryError{StatusCode: http.StatusGone, Err: errors.New("expired")})
	sender.On("Send", mock.Anything, bySubscription("ok"), mock.Anything, mock.Anything).
		Return(nil)

	result, err := newTestDispatcher(tasks, devices, sender, nil).Run(context.Background(), dispatchNow)

	require.NoError(t, err)
	assert.Equal(t, 1, result.TasksFound)
	assert.Equal(t, 1, result.NotificationsSent)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, []string{"ok"}, devices.ids())
	require.NotNil(t, tasks.marker("t1"))
	assert.True(t, tasks.marker("t1").Equal(dispatchNow))
}

func TestRunReleasesClaimWhenEverySendFails(t *testing.T) {
	tasks := newMemoryTasks(dueTask("t1", "u1"))
	devices := &memoryDevices{devices: []push.Subscription{
		device("flaky", "u1"),
		device("slow", "u1"),
	}}

	sender := new(MockSender)
	sender.On("Send", mock.Anything, bySubscription("flaky"), mock.Anything, mock.Anything).
		Return(&push.DeliveryError{StatusCode: http.StatusInternalServerError, Err: errors.New("boom")})
	sender.On("Send", mock.Anything, bySubscription("slow"), mock.Anything, mock.Anything).
		Return(&push.DeliveryError{Err: context.DeadlineExceeded})

	result, err := newTestDispatcher(tasks, devices, sender, nil).Run(context.Background(), dispatchNow)

	require.NoError(t, err)
	assert.Equal(t, 0, result.NotificationsSent)
	assert.Equal(t, 2, result.Errors)
	assert.Nil(t, tasks.marker("t1"), "the next run must retry")
	assert.ElementsMatch(t, []string{"flaky", "slow"}, devices.ids())
}

func TestRunSkipsUsersWithoutDevices(t *testing.T) {
	tasks := newMemoryTasks(dueTask("t1", "lonely"))
	devices := &memoryDevices{}
	sender := new(MockSender)

	result, err := newTestDispatcher(tasks, devices, sender, nil).Run(context.Background(), dispatchNow)

	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, TasksFound: 1}, result)
	assert.Nil(t, tasks.marker("t1"))
}

func TestRunIsIdempotent(t *testing.T) {
	tasks := newMemoryTasks(dueTask("t1", "u1"))
	devices := &memoryDevices{devices: []push.Subscription{device("d1", "u1")}}

	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	d := newTestDispatcher(tasks, devices, sender, nil)

	first, err := d.Run(context.Background(), dispatchNow)
	require.NoError(t, err)
	assert.Equal(t, 1, first.NotificationsSent)

	second, err := d.Run(context.Background(), dispatchNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, second.NotificationsSent)
	assert.Zero(t, second.TasksFound)

	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestRunConcurrentRunsSendOnce(t *testing.T) {
	tasks := newMemoryTasks(dueTask("t1", "u1"))
	devices := &memoryDevices{devices: []push.Subscription{device("d1", "u1")}}

	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	d := newTestDispatcher(tasks, devices, sender, nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Run(context.Background(), dispatchNow)
		}()
	}
	wg.Wait()

	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestRunHonoursLock(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		tasks := newMemoryTasks(dueTask("t1", "u1"))
		sender := new(MockSender)

		result, err := newTestDispatcher(tasks, &memoryDevices{}, sender, &stubLocker{}).
			Run(context.Background(), dispatchNow)

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.NotEmpty(t, result.Message)
		assert.Zero(t, result.TasksFound)
	})

	t.Run("redis down fails open", func(t *testing.T) {
		tasks := newMemoryTasks(dueTask("t1", "u1"))
		devices := &memoryDevices{devices: []push.Subscription{device("d1", "u1")}}
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		result, err := newTestDispatcher(tasks, devices, sender, &stubLocker{err: errors.New("dial tcp")}).
			Run(context.Background(), dispatchNow)

		require.NoError(t, err)
		assert.Equal(t, 1, result.NotificationsSent)
	})

	t.Run("released after run", func(t *testing.T) {
		locker := &stubLocker{acquired: true}

		_, err := newTestDispatcher(newMemoryTasks(), &memoryDevices{}, new(MockSender), locker).
			Run(context.Background(), dispatchNow)

		require.NoError(t, err)
		assert.True(t, locker.released)
	})
}

func TestRunDisabled(t *testing.T) {
	tasks := newMemoryTasks(dueTask("t1", "u1"))
	d := NewDispatcher(tasks, &memoryDevices{}, new(MockSender), nil, Options{Window: testWindow})

	result, err := d.Run(context.Background(), dispatchNow)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "push notifications are not configured", result.Message)
}

func TestRunStoreFailure(t *testing.T) {
	tasks := newMemoryTasks()
	tasks.err = errors.New("connection refused")

	_, err := newTestDispatcher(tasks, &memoryDevices{}, new(MockSender), nil).
		Run(context.Background(), dispatchNow)

	require.Error(t, err)
}
