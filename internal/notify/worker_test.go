package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"akun/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMailer returns the queued errors in order, then nil.
type fakeMailer struct {
	mu    sync.Mutex
	errs  []error
	calls int
	sent  []string
}

func (m *fakeMailer) SendCode(ctx context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return err
		}
	}
	m.sent = append(m.sent, to+":"+code)
	return nil
}

// memoryTaskStore keeps every saved status so tests can check transitions.
type memoryTaskStore struct {
	mu      sync.Mutex
	tasks   map[string]notify.TaskInfo
	history []notify.TaskStatus
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{tasks: make(map[string]notify.TaskInfo)}
}

func (s *memoryTaskStore) Save(ctx context.Context, info *notify.TaskInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[info.TaskID] = *info
	s.history = append(s.history, info.Status)
	return nil
}

func (s *memoryTaskStore) Load(ctx context.Context, taskID string) (*notify.TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, notify.ErrTaskNotFound)
	}
	return &info, nil
}

func jobBody(t *testing.T, id string) []byte {
	t.Helper()
	body, err := json.Marshal(notify.Job{TaskID: id, Code: "AB12C3", To: "a@x.com"})
	require.NoError(t, err)
	return body
}

func TestWorker_Success(t *testing.T) {
	store := newMemoryTaskStore()
	mailer := &fakeMailer{}
	w := notify.NewWorker(store, mailer, time.Millisecond, zap.NewNop())

	require.NoError(t, w.Handle(context.Background(), jobBody(t, "t1")))

	info, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, notify.StatusSuccess, info.Status)
	assert.Equal(t, 200, info.Result.Status)
	assert.Equal(t, 1, info.Attempts)
	assert.Equal(t, []string{"a@x.com:AB12C3"}, mailer.sent)
	assert.Equal(t, []notify.TaskStatus{notify.StatusStarted, notify.StatusSuccess}, store.history)
}

func TestWorker_RetriesTransientFailure(t *testing.T) {
	store := newMemoryTaskStore()
	mailer := &fakeMailer{errs: []error{fmt.Errorf("%w: timeout", notify.ErrDelivery)}}
	w := notify.NewWorker(store, mailer, time.Millisecond, zap.NewNop())

	require.NoError(t, w.Handle(context.Background(), jobBody(t, "t2")))

	info, err := store.Load(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, notify.StatusSuccess, info.Status)
	assert.Equal(t, 2, info.Attempts)
	assert.Equal(t, 2, mailer.calls)
	assert.Equal(t, []notify.TaskStatus{notify.StatusStarted, notify.StatusRetry, notify.StatusSuccess}, store.history)
}

func TestWorker_GivesUpAfterTwoRetries(t *testing.T) {
	store := newMemoryTaskStore()
	fail := fmt.Errorf("%w: connection refused", notify.ErrDelivery)
	mailer := &fakeMailer{errs: []error{fail, fail, fail, fail}}
	w := notify.NewWorker(store, mailer, time.Millisecond, zap.NewNop())

	require.NoError(t, w.Handle(context.Background(), jobBody(t, "t3")))

	info, err := store.Load(context.Background(), "t3")
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailure, info.Status)
	assert.Equal(t, 500, info.Result.Status)
	assert.Contains(t, info.Result.Msg, "connection refused")
	assert.Equal(t, 3, mailer.calls)
	assert.Equal(t, 3, info.Attempts)
}

func TestWorker_RecipientNotFoundIsNotRetried(t *testing.T) {
	store := newMemoryTaskStore()
	mailer := &fakeMailer{errs: []error{fmt.Errorf("%w: 550 no such user", notify.ErrRecipientNotFound)}}
	w := notify.NewWorker(store, mailer, time.Millisecond, zap.NewNop())

	require.NoError(t, w.Handle(context.Background(), jobBody(t, "t4")))

	info, err := store.Load(context.Background(), "t4")
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailure, info.Status)
	assert.Equal(t, 550, info.Result.Status)
	assert.Equal(t, 1, mailer.calls)
}

func TestWorker_RejectsMalformedJob(t *testing.T) {
	w := notify.NewWorker(newMemoryTaskStore(), &fakeMailer{}, time.Millisecond, zap.NewNop())

	assert.Error(t, w.Handle(context.Background(), []byte("not json")))
	assert.Error(t, w.Handle(context.Background(), []byte(`{"code":"AB12C3"}`)))
}

func TestMessage(t *testing.T) {
	subject, body, err := notify.Message("AB12C3")
	require.NoError(t, err)
	assert.Equal(t, "Akun verification code: AB12C3", subject)
	assert.Contains(t, body, "AB12C3")
	assert.Contains(t, body, "<b>5</b> minutes")
}

func TestErrorKindsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(notify.ErrRecipientNotFound, notify.ErrDelivery))
	assert.False(t, errors.Is(notify.ErrDelivery, notify.ErrRecipientNotFound))
}
