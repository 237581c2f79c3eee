package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vanishmail/vanishmail-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// KVRepositoryTestSuite is the test suite for KVRepository
type KVRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo KVRepository
	now  time.Time
}

// SetupSuite runs once before all tests
func (s *KVRepositoryTestSuite) SetupSuite() {
	// Use in-memory SQLite for testing
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	err = db.AutoMigrate(&models.KVRecord{})
	require.NoError(s.T(), err)

	s.db = db
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.repo = NewKVRepositoryWithClock(db, func() time.Time { return s.now })
}

// TearDownSuite runs once after all tests
func (s *KVRepositoryTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test - reset data and clock
func (s *KVRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM kv_records")
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

// advance moves the injected clock forward
func (s *KVRepositoryTestSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

// TestKVRepositoryTestSuite runs the test suite
func TestKVRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(KVRepositoryTestSuite))
}

// ==================== Get / Put Tests ====================

func (s *KVRepositoryTestSuite) TestPutGet_RoundTrip() {
	err := s.repo.Put(context.Background(), "session:a@x.example", []byte(`{"v":1}`), 0)
	require.NoError(s.T(), err)

	value, ok := s.repo.Get(context.Background(), "session:a@x.example")
	assert.True(s.T(), ok)
	assert.JSONEq(s.T(), `{"v":1}`, string(value))
}

func (s *KVRepositoryTestSuite) TestGet_AbsentKey() {
	_, ok := s.repo.Get(context.Background(), "session:missing@x.example")
	assert.False(s.T(), ok)
}

func (s *KVRepositoryTestSuite) TestPut_UpsertOverwrites() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "k", []byte(`"old"`), 0))
	require.NoError(s.T(), s.repo.Put(ctx, "k", []byte(`"new"`), 0))

	value, ok := s.repo.Get(ctx, "k")
	assert.True(s.T(), ok)
	assert.Equal(s.T(), `"new"`, string(value))
}

func (s *KVRepositoryTestSuite) TestPut_ZeroTTLNeverExpires() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "k", []byte(`1`), 0))

	s.advance(365 * 24 * time.Hour)

	_, ok := s.repo.Get(ctx, "k")
	assert.True(s.T(), ok)
}

// ==================== Expiry Tests ====================

func (s *KVRepositoryTestSuite) TestGet_ExpiredKeyIsAbsent() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "k", []byte(`1`), time.Minute))

	s.advance(time.Minute + time.Second)

	_, ok := s.repo.Get(ctx, "k")
	assert.False(s.T(), ok)
}

func (s *KVRepositoryTestSuite) TestGet_ExpiredKeyIsLazilyDeleted() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "k", []byte(`1`), time.Minute))

	s.advance(2 * time.Minute)

	_, ok := s.repo.Get(ctx, "k")
	require.False(s.T(), ok)

	// The expired row must be gone from the table, not just filtered
	var count int64
	s.db.Model(&models.KVRecord{}).Where("key = ?", "k").Count(&count)
	assert.Zero(s.T(), count)
}

func (s *KVRepositoryTestSuite) TestGet_UnexpiredWithinTTL() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "k", []byte(`1`), time.Hour))

	s.advance(59 * time.Minute)

	_, ok := s.repo.Get(ctx, "k")
	assert.True(s.T(), ok)
}

// ==================== Delete Tests ====================

func (s *KVRepositoryTestSuite) TestDelete_RemovesRecord() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "k", []byte(`1`), 0))
	require.NoError(s.T(), s.repo.Delete(ctx, "k"))

	_, ok := s.repo.Get(ctx, "k")
	assert.False(s.T(), ok)
}

func (s *KVRepositoryTestSuite) TestDelete_AbsentKeyIsNoError() {
	assert.NoError(s.T(), s.repo.Delete(context.Background(), "never-existed"))
}

// ==================== Prefix Scan Tests ====================

func (s *KVRepositoryTestSuite) TestListByPrefix_FiltersExpiredAtStorageLayer() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "msg:a@x:1", []byte(`1`), time.Minute))
	require.NoError(s.T(), s.repo.Put(ctx, "msg:a@x:2", []byte(`2`), time.Hour))
	require.NoError(s.T(), s.repo.Put(ctx, "session:a@x", []byte(`3`), time.Hour))

	s.advance(5 * time.Minute)

	records, err := s.repo.ListByPrefix(ctx, "msg:a@x:", 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), records, 1)
	assert.Equal(s.T(), "msg:a@x:2", records[0].Key)
}

func (s *KVRepositoryTestSuite) TestListByPrefix_NewestFirstAndLimited() {
	ctx := context.Background()
	// Later writes get later expiries under a fixed TTL, so expires_at
	// descending is received-time descending.
	for i, key := range []string{"msg:a@x:old", "msg:a@x:mid", "msg:a@x:new"} {
		s.now = s.now.Add(time.Duration(i) * time.Minute)
		require.NoError(s.T(), s.repo.Put(ctx, key, []byte(`1`), time.Hour))
	}

	records, err := s.repo.ListByPrefix(ctx, "msg:a@x:", 2)
	require.NoError(s.T(), err)
	require.Len(s.T(), records, 2)
	assert.Equal(s.T(), "msg:a@x:new", records[0].Key)
	assert.Equal(s.T(), "msg:a@x:mid", records[1].Key)
}

func (s *KVRepositoryTestSuite) TestListByPrefix_UnderscoreMatchesLiterally() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "msg:a_b@x:1", []byte(`1`), time.Hour))
	require.NoError(s.T(), s.repo.Put(ctx, "msg:aXb@x:1", []byte(`2`), time.Hour))

	records, err := s.repo.ListByPrefix(ctx, "msg:a_b@x:", 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), records, 1)
	assert.Equal(s.T(), "msg:a_b@x:1", records[0].Key)
}

func (s *KVRepositoryTestSuite) TestCountByPrefix() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "session:a@x", []byte(`1`), time.Hour))
	require.NoError(s.T(), s.repo.Put(ctx, "session:b@x", []byte(`1`), time.Minute))
	require.NoError(s.T(), s.repo.Put(ctx, "msg:a@x:1", []byte(`1`), time.Hour))

	count, err := s.repo.CountByPrefix(ctx, "session:")
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 2, count)

	s.advance(30 * time.Minute)

	count, err = s.repo.CountByPrefix(ctx, "session:")
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 1, count)
}

// ==================== Typed Codec Tests ====================

func (s *KVRepositoryTestSuite) TestGetJSON_RoundTrip() {
	ctx := context.Background()
	session := &models.Session{
		Address:     "abc@x.example",
		RecoveryKey: "11111111-2222-3333-4444-555555555555",
		CreatedAt:   s.now,
		ExpiresAt:   s.now.Add(30 * 24 * time.Hour),
	}
	require.NoError(s.T(), PutJSON(ctx, s.repo, models.SessionKey(session.Address), session, time.Hour))

	got, err := GetJSON[models.Session](ctx, s.repo, models.SessionKey(session.Address))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), session.Address, got.Address)
	assert.Equal(s.T(), session.RecoveryKey, got.RecoveryKey)
}

func (s *KVRepositoryTestSuite) TestGetJSON_AbsentReturnsNotFound() {
	_, err := GetJSON[models.Session](context.Background(), s.repo, "session:nope")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *KVRepositoryTestSuite) TestGetJSON_CorruptPayloadReturnsNotFound() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Put(ctx, "k", []byte(`{not json`), 0))

	_, err := GetJSON[models.Session](ctx, s.repo, "k")
	assert.ErrorIs(s.T(), err, ErrNotFound)

	// Sanity: the raw bytes really were stored
	raw, ok := s.repo.Get(ctx, "k")
	require.True(s.T(), ok)
	assert.False(s.T(), json.Valid(raw))
}
