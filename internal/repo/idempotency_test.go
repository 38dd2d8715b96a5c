package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-responder-bot/internal/domain"
)

func TestGetIdempotency_EmptyKey_ReturnsNotFound(t *testing.T) {
	db := newRepoDB(t, true)
	now := time.Now().UTC()

	rec, err := GetIdempotency(context.Background(), db, "u1", "   ", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for empty key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newRepoDB(t, true)
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:        "expired",
		UserID:    "u1",
		Key:       "k1",
		Status:    201,
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "u1", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}

	rec2, err2 := GetIdempotency(context.Background(), db, "u1", "missing", now)
	if rec2 != nil || err2 != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec2, err2)
	}
}

func TestCreateThenGetIdempotency(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()
	start := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "u9", "k9", 17, 201, 90*time.Minute)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || rec.ResponderID != 17 || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	got, err := GetIdempotency(ctx, db, "u9", "k9", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.ResponderID != 17 {
		t.Fatalf("ResponderID = %d; want 17", got.ResponderID)
	}

	// Same key for another user is a different record.
	if _, err := GetIdempotency(ctx, db, "someone-else", "k9", time.Now().UTC()); err != ErrNotFound {
		t.Fatalf("key must be scoped to the user, got %v", err)
	}
}

func TestCreateIdempotency_Duplicate(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "k1", 1, 201, time.Hour); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "k1", 2, 201, time.Hour); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateIdempotency_ReclaimsExpiredKey(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := &domain.Idempotency{
		ID: "stale", UserID: "U1", Key: "create-1", ResponderID: 3, Status: 201,
		CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(stale).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "U1", "create-1", 9, 201, time.Hour); err != nil {
		t.Fatalf("expired key should be reusable before purge: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "U1", "create-1", time.Now().UTC())
	if err != nil || got.ResponderID != 9 {
		t.Fatalf("reclaimed record = %+v, %v", got, err)
	}
	var n int64
	db.Model(&domain.Idempotency{}).Count(&n)
	if n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newRepoDB(t, false)
	_, err := CreateIdempotency(context.Background(), db, "u", "k", 1, 201, time.Minute)
	if err == nil || err == ErrDuplicate {
		t.Fatalf("expected a storage error, got %v", err)
	}
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
}

func TestPurgeIdempotency(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, exp := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		rec := &domain.Idempotency{
			ID:        string(rune('a' + i)),
			UserID:    "u",
			Key:       string(rune('a' + i)),
			Status:    201,
			CreatedAt: now.Add(-2 * time.Hour),
			ExpiresAt: exp,
		}
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	n, err := PurgeIdempotency(ctx, db, now)
	if err != nil {
		t.Fatalf("PurgeIdempotency: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged %d; want 2", n)
	}
	if _, err := GetIdempotency(ctx, db, "u", "c", now); err != nil {
		t.Fatalf("live record must survive purge: %v", err)
	}
}
