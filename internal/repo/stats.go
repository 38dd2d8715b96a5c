// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides a small aggregate query used for
// conditional responses (ETag generation) on the admin listing.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-responder-bot/internal/domain"
)

// ResponderStats returns the number of responders and the greatest EditedOn
// among them. With no rows, count is 0 and maxEditedOn is nil.
//
// Deleting a rule changes the count, and every create or update bumps
// edited_on, so the pair changes whenever the listing does.
func ResponderStats(ctx context.Context, db *gorm.DB) (count int64, maxEditedOn *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Responder{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, wrap("responder stats", err)
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest edited_on (avoid MAX() -> TEXT in SQLite)
	var row struct {
		EditedOn time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Responder{}).
		Select("edited_on").Order("edited_on DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, wrap("responder stats", err)
	}
	return count, &row.EditedOn, nil
}
