package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vanishmail/vanishmail-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Clock supplies the current time. Injectable so expiry behavior is
// testable without waiting.
type Clock func() time.Time

// KVRepository emulates a key-value cache with per-key expiry on top of
// the relational kv_records table. It is the system's correctness
// floor: Get never surfaces storage errors to the caller.
type KVRepository interface {
	// Get returns the value for key, or ok=false when the key is
	// absent, expired, or the read failed. An expired row found here is
	// deleted before returning (lazy expiry).
	Get(ctx context.Context, key string) ([]byte, bool)

	// Put upserts the value under key. A ttl of zero stores the record
	// without expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the record for key. Deleting an absent key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// ListByPrefix returns up to limit unexpired records whose key
	// starts with prefix, most recently written first (expires_at
	// descending). Expired rows are filtered in the query, not via the
	// lazy-expiry path, since scans touch many rows at once.
	ListByPrefix(ctx context.Context, prefix string, limit int) ([]models.KVRecord, error)

	// CountByPrefix counts unexpired records whose key starts with prefix.
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
}

// kvRepository implements KVRepository using GORM
type kvRepository struct {
	db  *gorm.DB
	now Clock
}

// NewKVRepository creates a new KVRepository instance
func NewKVRepository(db *gorm.DB) KVRepository {
	return NewKVRepositoryWithClock(db, time.Now)
}

// NewKVRepositoryWithClock creates a KVRepository with a custom clock
func NewKVRepositoryWithClock(db *gorm.DB, now Clock) KVRepository {
	return &kvRepository{db: db, now: now}
}

// Get retrieves a value, treating every failure mode as absence
func (r *kvRepository) Get(ctx context.Context, key string) ([]byte, bool) {
	var record models.KVRecord
	result := r.db.WithContext(ctx).First(&record, "key = ?", key)
	if result.Error != nil {
		return nil, false
	}

	if record.Expired(r.now()) {
		// Lazy GC: reclaim the row on read so no sweeper is needed for
		// correctness. Best effort; a failed delete changes nothing.
		_ = r.db.WithContext(ctx).Delete(&models.KVRecord{}, "key = ?", key).Error
		return nil, false
	}

	return record.Value, true
}

// Put upserts a record (write-wins on the primary key)
func (r *kvRepository) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	record := models.KVRecord{
		Key:   key,
		Value: value,
	}
	if ttl > 0 {
		expiresAt := r.now().Add(ttl)
		record.ExpiresAt = &expiresAt
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to put record: %w", result.Error)
	}
	return nil
}

// Delete removes a record by key
func (r *kvRepository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Delete(&models.KVRecord{}, "key = ?", key)
	if result.Error != nil {
		return fmt.Errorf("failed to delete record: %w", result.Error)
	}
	return nil
}

// ListByPrefix returns unexpired records under prefix, newest first
func (r *kvRepository) ListByPrefix(ctx context.Context, prefix string, limit int) ([]models.KVRecord, error) {
	var records []models.KVRecord
	result := r.db.WithContext(ctx).
		Where("key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Where("expires_at IS NULL OR expires_at > ?", r.now()).
		Order("expires_at DESC").
		Limit(limit).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list records: %w", result.Error)
	}
	return records, nil
}

// CountByPrefix counts unexpired records under prefix
func (r *kvRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.KVRecord{}).
		Where("key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Where("expires_at IS NULL OR expires_at > ?", r.now()).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count records: %w", result.Error)
	}
	return count, nil
}

// escapeLike escapes LIKE metacharacters so address local parts
// containing underscores match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// GetJSON loads and decodes a typed value. Absent keys and undecodable
// payloads both return ErrNotFound, matching the fail-soft contract of
// the underlying Get.
func GetJSON[T any](ctx context.Context, kv KVRepository, key string) (*T, error) {
	raw, ok := kv.Get(ctx, key)
	if !ok {
		return nil, ErrNotFound
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, ErrNotFound
	}
	return &v, nil
}

// PutJSON encodes and stores a typed value under key.
func PutJSON[T any](ctx context.Context, kv KVRepository, key string, v *T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return kv.Put(ctx, key, raw, ttl)
}
