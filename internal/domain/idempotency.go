package domain

import "time"

// Idempotency records the outcome of an admin create request, keyed by
// (user_id, key). A retried request carrying the same Idempotency-Key gets the
// originally created responder back instead of creating a duplicate rule.
type Idempotency struct {
	ID          string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idempotency_user_key,priority:1"`
	Key         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idempotency_user_key,priority:2"`
	ResponderID int64     `gorm:"type:INTEGER NOT NULL"`
	Status      int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt   time.Time `gorm:"type:TIMESTAMP NOT NULL;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"type:TIMESTAMP NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
