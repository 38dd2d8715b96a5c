package domain

import (
	"strings"
	"testing"
	"time"
)

func TestIdempotency_Migration_UniqueUserKey(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_idempotency_user_key") {
		t.Fatalf("expected unique index ux_idempotency_user_key")
	}

	now := time.Now().UTC()
	first := &Idempotency{ID: "i1", UserID: "u1", Key: "k1", ResponderID: 7, Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("insert first: %v", err)
	}

	dup := &Idempotency{ID: "i2", UserID: "u1", Key: "k1", ResponderID: 8, Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	err := db.Create(dup).Error
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "unique") {
		t.Fatalf("expected unique violation, got %v", err)
	}

	other := &Idempotency{ID: "i3", UserID: "u2", Key: "k1", ResponderID: 9, Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("same key for another user should be allowed: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "i1").Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.ResponderID != 7 || got.Status != 201 {
		t.Fatalf("unexpected row: %+v", got)
	}
}
