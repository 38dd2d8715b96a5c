package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-responder-bot/internal/domain"
)

// ErrDuplicate means (user_id, key) already has a record.
var ErrDuplicate = errors.New("duplicate idempotency key")

// GetIdempotency returns the record for (userID, key) if it is still live at
// now, else ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, key string, now time.Time) (*domain.Idempotency, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND key = ? AND expires_at > ?", userID, key, now).
		Take(&rec).Error
	if err != nil {
		return nil, wrap("get idempotency", err)
	}
	return &rec, nil
}

// CreateIdempotency remembers that userID created responderID under key for
// ttl. A record for the same pair is only overwritten once it has expired, so
// a purge that has not run yet never blocks a key. Any other conflict affects
// zero rows and is reported as ErrDuplicate on every dialect.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, key string, responderID int64, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:          uuid.NewString(),
		UserID:      userID,
		Key:         strings.TrimSpace(key),
		ResponderID: responderID,
		Status:      status,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"responder_id", "status", "created_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lte{Column: clause.Column{Table: rec.TableName(), Name: "expires_at"}, Value: now},
		}},
	}).Create(rec)
	if res.Error != nil {
		return nil, wrap("create idempotency", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return rec, nil
}

// PurgeIdempotency deletes records expired at now and reports how many went.
func PurgeIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	if res.Error != nil {
		return 0, wrap("purge idempotency", res.Error)
	}
	return res.RowsAffected, nil
}
