package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestTableNames(t *testing.T) {
	if (Responder{}).TableName() != "responder" {
		t.Fatalf("Responder.TableName() = %q", (Responder{}).TableName())
	}
	if (ResponderHistory{}).TableName() != "responder_history" {
		t.Fatalf("ResponderHistory.TableName() = %q", (ResponderHistory{}).TableName())
	}
	if (Idempotency{}).TableName() != "idempotency" {
		t.Fatalf("Idempotency.TableName() = %q", (Idempotency{}).TableName())
	}
}

func TestMigrations_ColumnsAndIndexes(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Responder{}, &ResponderHistory{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, col := range []string{"id", "pattern", "flags", "response", "priority", "created_on", "edited_on"} {
		if !m.HasColumn(&Responder{}, col) {
			t.Fatalf("responder: missing column %q", col)
		}
	}
	for _, col := range []string{"id", "responder_id", "pattern", "flags", "response", "priority", "edited_by", "edited_on"} {
		if !m.HasColumn(&ResponderHistory{}, col) {
			t.Fatalf("responder_history: missing column %q", col)
		}
	}
	if !m.HasIndex(&Responder{}, "idx_responder_priority") {
		t.Fatalf("expected index idx_responder_priority")
	}
	if !m.HasIndex(&ResponderHistory{}, "idx_responder_history_responder") {
		t.Fatalf("expected index idx_responder_history_responder")
	}
}

func TestHistorySurvivesResponderDelete(t *testing.T) {
	db := newTestDB(t)
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&Responder{}, &ResponderHistory{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	now := time.Now().UTC()
	r := &Responder{Pattern: "a", Response: "b", CreatedOn: now, EditedOn: now}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("insert responder: %v", err)
	}
	if r.ID == 0 {
		t.Fatalf("expected auto-assigned id")
	}
	h := &ResponderHistory{ResponderID: r.ID, Pattern: "a", Response: "b", EditedBy: "u1", EditedOn: now}
	if err := db.Create(h).Error; err != nil {
		t.Fatalf("insert history: %v", err)
	}

	if err := db.Delete(&Responder{}, r.ID).Error; err != nil {
		t.Fatalf("delete responder: %v", err)
	}

	var n int64
	if err := db.Model(&ResponderHistory{}).Where("responder_id = ?", r.ID).Count(&n).Error; err != nil {
		t.Fatalf("count history: %v", err)
	}
	if n != 1 {
		t.Fatalf("history rows after delete = %d; want 1", n)
	}
}
