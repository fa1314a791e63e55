package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"akun/internal/cache"
	"akun/internal/repositories"
	"akun/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(offset time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t0.Add(offset)
}

// fakeNotifier remembers the last code queued for every address.
type fakeNotifier struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
	err   error
}

func (n *fakeNotifier) Enqueue(ctx context.Context, code, to string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	if n.codes == nil {
		n.codes = make(map[string]string)
	}
	n.sent++
	n.codes[to] = code
	return fmt.Sprintf("task-%d", n.sent), nil
}

func (n *fakeNotifier) Code(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[to]
}

type testStack struct {
	db           *gorm.DB
	mr           *miniredis.Miniredis
	clock        *clock
	notifier     *fakeNotifier
	users        *repositories.GORMUserRepository
	codes        *repositories.GORMVerificationCodeRepository
	verification *services.VerificationService
	auth         *services.AuthService
	accounts     *services.AccountService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repositories.OpenDatabase("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := &testStack{
		db:       db,
		mr:       mr,
		clock:    &clock{now: t0},
		notifier: &fakeNotifier{},
		users:    repositories.NewGORMUserRepository(db),
		codes:    repositories.NewGORMVerificationCodeRepository(db),
	}
	codeCache := cache.NewCodeCache(cache.NewRedisCache(client), 10*time.Minute)
	s.verification = services.NewVerificationService(s.codes, codeCache, s.notifier, 5*time.Minute, 60*time.Second, zap.NewNop()).
		WithClock(s.clock.Now)
	s.auth = services.NewAuthService(s.users, testSecret, time.Hour, bcrypt.MinCost, zap.NewNop()).
		WithClock(s.clock.Now)
	s.accounts = services.NewAccountService(s.users, s.verification, s.auth, zap.NewNop())
	return s
}

// requestCode issues a code for email and returns it as the mailer would see it.
func (s *testStack) requestCode(t *testing.T, email string) string {
	t.Helper()
	_, err := s.verification.RequestCode(context.Background(), email)
	require.NoError(t, err)
	code := s.notifier.Code(email)
	require.Len(t, code, 6)
	return code
}
