package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	"github.com/vanishmail/vanishmail-backend/internal/models"
	"github.com/vanishmail/vanishmail-backend/internal/repository"
	"github.com/vanishmail/vanishmail-backend/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SMTPSessionTestSuite exercises the SMTP session against a real
// service stack over in-memory storage.
type SMTPSessionTestSuite struct {
	suite.Suite
	db       *gorm.DB
	kv       repository.KVRepository
	sessions *services.SessionService
	messages *services.MessageService
	backend  *Backend
	cfg      *config.Config
	now      time.Time
}

func (s *SMTPSessionTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), db.AutoMigrate(&models.KVRecord{}))

	s.db = db
	s.cfg = &config.Config{
		MailboxDomains:     []string{"a.example"},
		DomainRepeatFactor: 1,
		MailboxTTL:         time.Hour,
		MessageTTL:         15 * time.Minute,
	}
}

func (s *SMTPSessionTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

func (s *SMTPSessionTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM kv_records")
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	clock := func() time.Time { return s.now }
	s.kv = repository.NewKVRepositoryWithClock(s.db, clock)

	allocator := services.NewDomainAllocator(s.kv, s.cfg.MailboxDomains, s.cfg.DomainRepeatFactor, slog.Default())
	s.sessions = services.NewSessionServiceWithClock(s.kv, allocator, s.cfg, slog.Default(), clock)

	stats := services.NewStatsRecorderWithClock(s.kv, slog.Default(), clock)
	s.messages = services.NewMessageServiceWithClock(s.kv, s.sessions, stats, s.cfg, slog.Default(), clock)

	s.backend = NewBackend(&BackendConfig{
		Sessions: s.sessions,
		Messages: s.messages,
		Config:   s.cfg,
		Logger:   slog.Default(),
	})
}

func (s *SMTPSessionTestSuite) createMailbox() string {
	info, err := s.sessions.Create(context.Background())
	require.NoError(s.T(), err)
	return info.Address
}

func TestSMTPSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SMTPSessionTestSuite))
}

// ==================== RCPT Tests ====================

func (s *SMTPSessionTestSuite) TestRcpt_AcceptsLiveMailbox() {
	address := s.createMailbox()
	session := NewSession(s.backend)

	err := session.Rcpt("<"+address+">", &gosmtp.RcptOptions{})
	assert.NoError(s.T(), err)
}

func (s *SMTPSessionTestSuite) TestRcpt_RejectsUnknownMailbox() {
	session := NewSession(s.backend)

	err := session.Rcpt("nobody@a.example", &gosmtp.RcptOptions{})
	require.Error(s.T(), err)

	var smtpErr *gosmtp.SMTPError
	require.ErrorAs(s.T(), err, &smtpErr)
	assert.Equal(s.T(), 550, smtpErr.Code)
}

func (s *SMTPSessionTestSuite) TestRcpt_RejectsForeignDomain() {
	session := NewSession(s.backend)

	err := session.Rcpt("someone@elsewhere.example", &gosmtp.RcptOptions{})
	require.Error(s.T(), err)

	var smtpErr *gosmtp.SMTPError
	require.ErrorAs(s.T(), err, &smtpErr)
	assert.Equal(s.T(), 550, smtpErr.Code)
}

func (s *SMTPSessionTestSuite) TestRcpt_RejectsMalformedAddress() {
	session := NewSession(s.backend)

	err := session.Rcpt("not an address", &gosmtp.RcptOptions{})
	assert.Error(s.T(), err)
}

// ==================== DATA Tests ====================

func (s *SMTPSessionTestSuite) TestData_DeliversToRecipient() {
	address := s.createMailbox()
	session := NewSession(s.backend)

	require.NoError(s.T(), session.Mail("sender@remote.example", &gosmtp.MailOptions{}))
	require.NoError(s.T(), session.Rcpt(address, &gosmtp.RcptOptions{}))

	raw := "From: sender@remote.example\r\nSubject: hi\r\n\r\nhello there\r\n"
	require.NoError(s.T(), session.Data(strings.NewReader(raw)))

	summaries, total, err := s.messages.List(context.Background(), address, 10)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), total)
	require.Len(s.T(), summaries, 1)
	assert.Equal(s.T(), "hi", summaries[0].Subject)
	assert.Equal(s.T(), "sender@remote.example", summaries[0].From)
}

func (s *SMTPSessionTestSuite) TestData_DeliversToMultipleRecipients() {
	first := s.createMailbox()
	second := s.createMailbox()
	session := NewSession(s.backend)

	require.NoError(s.T(), session.Mail("sender@remote.example", &gosmtp.MailOptions{}))
	require.NoError(s.T(), session.Rcpt(first, &gosmtp.RcptOptions{}))
	require.NoError(s.T(), session.Rcpt(second, &gosmtp.RcptOptions{}))

	raw := "From: sender@remote.example\r\nSubject: both\r\n\r\nbody\r\n"
	require.NoError(s.T(), session.Data(strings.NewReader(raw)))

	for _, address := range []string{first, second} {
		_, total, err := s.messages.List(context.Background(), address, 10)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), int64(1), total)
	}
}

func (s *SMTPSessionTestSuite) TestData_NoRecipients() {
	session := NewSession(s.backend)

	err := session.Data(strings.NewReader("From: x@y.example\r\n\r\nbody\r\n"))
	require.Error(s.T(), err)

	var smtpErr *gosmtp.SMTPError
	require.ErrorAs(s.T(), err, &smtpErr)
	assert.Equal(s.T(), 503, smtpErr.Code)
}

func (s *SMTPSessionTestSuite) TestData_RejectsOversizedPayload() {
	address := s.createMailbox()
	session := NewSession(s.backend)

	require.NoError(s.T(), session.Mail("sender@remote.example", &gosmtp.MailOptions{}))
	require.NoError(s.T(), session.Rcpt(address, &gosmtp.RcptOptions{}))

	raw := fmt.Sprintf("Subject: big\r\n\r\n%s\r\n", strings.Repeat("a", services.MaxRawMessageBytes))
	err := session.Data(strings.NewReader(raw))
	require.Error(s.T(), err)

	var smtpErr *gosmtp.SMTPError
	require.ErrorAs(s.T(), err, &smtpErr)
	assert.Equal(s.T(), 552, smtpErr.Code)
}

func (s *SMTPSessionTestSuite) TestData_EnvelopeSenderFallback() {
	address := s.createMailbox()
	session := NewSession(s.backend)

	require.NoError(s.T(), session.Mail("bounce@relay.example", &gosmtp.MailOptions{}))
	require.NoError(s.T(), session.Rcpt(address, &gosmtp.RcptOptions{}))

	// Headers carry no From; the envelope sender fills in.
	raw := "Subject: headerless\r\n\r\nbody\r\n"
	require.NoError(s.T(), session.Data(strings.NewReader(raw)))

	summaries, _, err := s.messages.List(context.Background(), address, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), summaries, 1)
	assert.Equal(s.T(), "bounce@relay.example", summaries[0].From)
}

// ==================== Reset Tests ====================

func (s *SMTPSessionTestSuite) TestReset_ClearsState() {
	address := s.createMailbox()
	session := NewSession(s.backend)

	require.NoError(s.T(), session.Mail("sender@remote.example", &gosmtp.MailOptions{}))
	require.NoError(s.T(), session.Rcpt(address, &gosmtp.RcptOptions{}))

	session.Reset()

	err := session.Data(strings.NewReader("From: x@y.example\r\n\r\nbody\r\n"))
	assert.Error(s.T(), err)
}
