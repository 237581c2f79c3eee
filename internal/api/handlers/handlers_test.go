package handlers

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	"github.com/vanishmail/vanishmail-backend/internal/models"
	"github.com/vanishmail/vanishmail-backend/internal/ratelimit"
	"github.com/vanishmail/vanishmail-backend/internal/repository"
	"github.com/vanishmail/vanishmail-backend/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testStack wires the full service stack over in-memory storage so
// handler tests exercise real semantics end to end.
type testStack struct {
	db       *gorm.DB
	kv       repository.KVRepository
	cfg      *config.Config
	sessions *services.SessionService
	messages *services.MessageService
	admin    *services.AdminService
	stats    *services.StatsRecorder
	limiter  *ratelimit.Limiter
	now      time.Time
}

func newTestStack(t *testing.T) *testStack {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.KVRecord{}))

	stack := &testStack{
		db:  db,
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		cfg: &config.Config{
			MailboxDomains:        []string{"a.example"},
			DomainRepeatFactor:    1,
			MailboxTTL:            30 * 24 * time.Hour,
			MessageTTL:            15 * time.Minute,
			SessionBucketCapacity: 5,
			SessionRefillPerSec:   0.5,
			SessionMaxPerDay:      100,
			InboxBucketCapacity:   30,
			InboxRefillPerSec:     10,
		},
	}

	clock := func() time.Time { return stack.now }
	stack.kv = repository.NewKVRepositoryWithClock(db, clock)

	allocator := services.NewDomainAllocator(stack.kv, stack.cfg.MailboxDomains, stack.cfg.DomainRepeatFactor, slog.Default())
	stack.sessions = services.NewSessionServiceWithClock(stack.kv, allocator, stack.cfg, slog.Default(), clock)
	stack.stats = services.NewStatsRecorderWithClock(stack.kv, slog.Default(), clock)
	stack.messages = services.NewMessageServiceWithClock(stack.kv, stack.sessions, stack.stats, stack.cfg, slog.Default(), clock)
	stack.admin = services.NewAdminServiceWithClock(stack.kv, slog.Default(), clock)
	stack.limiter = ratelimit.NewLimiterWithClock(stack.kv, slog.Default(), clock)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	return stack
}

func (s *testStack) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

func (s *testStack) createMailbox(t *testing.T) *models.SessionInfo {
	info, err := s.sessions.Create(context.Background())
	require.NoError(t, err)
	return info
}

func (s *testStack) ingest(t *testing.T, address, subject string) string {
	raw := []byte("From: sender@remote.example\r\nSubject: " + subject + "\r\n\r\nbody\r\n")
	id, err := s.messages.Ingest(context.Background(), address, raw, "sender@remote.example")
	require.NoError(t, err)
	return id
}

// newContext builds an echo context for handler invocation
func newContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
