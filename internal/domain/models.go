// Package domain defines the persistence models for responder rules and their
// audit history. These types are mapped with GORM and form the core data
// layer of the responder bot.
package domain

import "time"

// Responder is a persisted pattern→response rule. Rules are evaluated in
// ascending Priority order; ties are broken by ID.
//
// Fields:
//   - ID: auto-increment primary key, immutable once assigned.
//   - Pattern: regular expression applied to inbound message text.
//   - Flags: pattern modifiers (e.g. "gi"); may be empty.
//   - Response: template with $0..$n placeholders for match captures.
//   - Priority: lower values are evaluated (and answered) first.
//   - CreatedOn: set once on creation.
//   - EditedOn: bumped on every mutation, including creation.
type Responder struct {
	ID        int64     `json:"id"         gorm:"column:id;primaryKey;autoIncrement"`
	Pattern   string    `json:"pattern"    gorm:"column:pattern;type:text;not null"`
	Flags     string    `json:"flags"      gorm:"column:flags;type:text;not null;default:''"`
	Response  string    `json:"response"   gorm:"column:response;type:text;not null"`
	Priority  int       `json:"priority"   gorm:"column:priority;not null;default:0;index:idx_responder_priority"`
	CreatedOn time.Time `json:"created_on" gorm:"column:created_on;not null"`
	EditedOn  time.Time `json:"edited_on"  gorm:"column:edited_on;not null"`
}

// TableName returns the database table name for Responder.
func (Responder) TableName() string { return "responder" }

// ResponderHistory is an append-only snapshot of a Responder taken right
// before an update. ResponderID is a weak reference: rows survive the
// deletion of the rule they describe, so there is no foreign key.
type ResponderHistory struct {
	ID          int64     `json:"id"           gorm:"column:id;primaryKey;autoIncrement"`
	ResponderID int64     `json:"responder_id" gorm:"column:responder_id;not null;index:idx_responder_history_responder"`
	Pattern     string    `json:"pattern"      gorm:"column:pattern;type:text;not null"`
	Flags       string    `json:"flags"        gorm:"column:flags;type:text;not null;default:''"`
	Response    string    `json:"response"     gorm:"column:response;type:text;not null"`
	Priority    int       `json:"priority"     gorm:"column:priority;not null;default:0"`
	EditedBy    string    `json:"edited_by"    gorm:"column:edited_by;type:text;not null"`
	EditedOn    time.Time `json:"edited_on"    gorm:"column:edited_on;not null"`
}

// TableName returns the database table name for ResponderHistory.
func (ResponderHistory) TableName() string { return "responder_history" }
