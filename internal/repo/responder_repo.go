// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for responder rules
// and their audit history.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. Every
// statement is parameterized; user input never reaches SQL text.
//
// Error semantics:
//   - When a responder is not found, functions return ErrNotFound.
//   - On DB errors (constraint violations, connectivity issues, aborted
//     transactions), a *StorageError wrapping the raw gorm error is returned.
//
// Functions:
//
//   - GetResponder(ctx, db, id) -> *domain.Responder, error
//   - ListResponders(ctx, db, order) -> []domain.Responder, error
//   - CreateResponder(ctx, db, pattern, flags, response, priority) -> *domain.Responder, error
//   - UpdateResponder(ctx, db, id, fields, editedBy, validate) -> *domain.Responder, error
//     Snapshots the current row into responder_history and applies the
//     supplied fields in one transaction.
//   - DeleteResponder(ctx, db, id) -> (bool, error)
//     Hard delete; history rows are left in place.
//   - ListResponderHistory(ctx, db, responderID) -> []domain.ResponderHistory, error
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-responder-bot/internal/domain"
)

// ResponderFields carries the optional fields of an update. A nil pointer
// means "leave unchanged".
type ResponderFields struct {
	Pattern  *string
	Flags    *string
	Response *string
	Priority *int
}

// Empty reports whether no field is set.
func (f ResponderFields) Empty() bool {
	return f.Pattern == nil && f.Flags == nil && f.Response == nil && f.Priority == nil
}

// apply returns r with the supplied fields overwritten.
func (f ResponderFields) apply(r domain.Responder) domain.Responder {
	if f.Pattern != nil {
		r.Pattern = *f.Pattern
	}
	if f.Flags != nil {
		r.Flags = *f.Flags
	}
	if f.Response != nil {
		r.Response = *f.Response
	}
	if f.Priority != nil {
		r.Priority = *f.Priority
	}
	return r
}

// columns maps the supplied fields to column updates. Maps are used so that
// zero values ("" flags, priority 0) are written too.
func (f ResponderFields) columns() map[string]any {
	cols := make(map[string]any, 5)
	if f.Pattern != nil {
		cols["pattern"] = *f.Pattern
	}
	if f.Flags != nil {
		cols["flags"] = *f.Flags
	}
	if f.Response != nil {
		cols["response"] = *f.Response
	}
	if f.Priority != nil {
		cols["priority"] = *f.Priority
	}
	return cols
}

// Order selects the sort of ListResponders. The zero value sorts by id.
type Order struct {
	By        string // column, e.g. "priority" or "edited_on" ("editedOn" also accepted)
	Direction string // "asc" (default) or "desc"
}

// orderColumns whitelists sortable columns; keys are accepted spellings.
var orderColumns = map[string]string{
	"id":         "id",
	"pattern":    "pattern",
	"flags":      "flags",
	"response":   "response",
	"priority":   "priority",
	"created_on": "created_on",
	"createdon":  "created_on",
	"edited_on":  "edited_on",
	"editedon":   "edited_on",
}

// ByPriority is the order used by the dispatch path.
var ByPriority = Order{By: "priority", Direction: "asc"}

// resolve validates o and returns the column and direction.
func (o Order) resolve() (column string, desc bool, err error) {
	by := strings.ToLower(strings.TrimSpace(o.By))
	if by == "" {
		by = "id"
	}
	column, ok := orderColumns[by]
	if !ok {
		return "", false, fmt.Errorf("%w: unknown column %q", ErrInvalidOrder, o.By)
	}
	switch strings.ToLower(strings.TrimSpace(o.Direction)) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return "", false, fmt.Errorf("%w: unknown direction %q", ErrInvalidOrder, o.Direction)
	}
	return column, desc, nil
}

// GetResponder fetches a single responder by id, or ErrNotFound.
func GetResponder(ctx context.Context, db *gorm.DB, id int64) (*domain.Responder, error) {
	var r domain.Responder
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, wrap("get responder", err)
	}
	return &r, nil
}

// ListResponders returns every responder sorted by order, with id ascending
// as the tie-breaker so that equal keys keep insertion order.
func ListResponders(ctx context.Context, db *gorm.DB, order Order) ([]domain.Responder, error) {
	column, desc, err := order.resolve()
	if err != nil {
		return nil, err
	}
	q := db.WithContext(ctx).
		Model(&domain.Responder{}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	if column != "id" {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}

	var out []domain.Responder
	if err := q.Find(&out).Error; err != nil {
		return nil, wrap("list responders", err)
	}
	return out, nil
}

// CreateResponder inserts a new responder. CreatedOn and EditedOn are set to
// the same UTC instant.
func CreateResponder(ctx context.Context, db *gorm.DB, pattern, flags, response string, priority int) (*domain.Responder, error) {
	now := time.Now().UTC()
	r := &domain.Responder{
		Pattern:   pattern,
		Flags:     flags,
		Response:  response,
		Priority:  priority,
		CreatedOn: now,
		EditedOn:  now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, wrap("create responder", err)
	}
	return r, nil
}

// UpdateResponder applies fields to responder id on behalf of editedBy.
//
// Within one transaction it loads the current row (locking it on PostgreSQL),
// calls validate with the would-be result, writes a history entry holding
// the pre-update values, and updates the supplied columns plus edited_on.
// An error from validate is returned as is and nothing is written.
//
// When fields is empty the current row is returned and nothing is written.
func UpdateResponder(ctx context.Context, db *gorm.DB, id int64, fields ResponderFields, editedBy string, validate func(domain.Responder) error) (*domain.Responder, error) {
	if fields.Empty() {
		return GetResponder(ctx, db, id)
	}

	var (
		updated  domain.Responder
		checkErr error
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var cur domain.Responder
		if err := q.Where("id = ?", id).First(&cur).Error; err != nil {
			return err
		}

		next := fields.apply(cur)
		if validate != nil {
			if err := validate(next); err != nil {
				checkErr = err
				return err
			}
		}

		now := time.Now().UTC()
		hist := &domain.ResponderHistory{
			ResponderID: cur.ID,
			Pattern:     cur.Pattern,
			Flags:       cur.Flags,
			Response:    cur.Response,
			Priority:    cur.Priority,
			EditedBy:    editedBy,
			EditedOn:    now,
		}
		if err := tx.Create(hist).Error; err != nil {
			return err
		}

		cols := fields.columns()
		cols["edited_on"] = now
		res := tx.Model(&domain.Responder{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		next.EditedOn = now
		updated = next
		return nil
	})
	if checkErr != nil {
		return nil, checkErr
	}
	if err != nil {
		return nil, wrap("update responder", err)
	}
	return &updated, nil
}

// DeleteResponder removes responder id and reports whether a row was
// deleted. A missing id is not an error.
func DeleteResponder(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Responder{})
	if res.Error != nil {
		return false, wrap("delete responder", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListResponderHistory returns the audit trail of responderID, newest first.
// Entries of deleted responders are still returned.
func ListResponderHistory(ctx context.Context, db *gorm.DB, responderID int64) ([]domain.ResponderHistory, error) {
	var out []domain.ResponderHistory
	err := db.WithContext(ctx).
		Where("responder_id = ?", responderID).
		Order("edited_on DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, wrap("list responder history", err)
	}
	return out, nil
}

// CountResponderHistory returns the number of history entries for responderID.
func CountResponderHistory(ctx context.Context, db *gorm.DB, responderID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ResponderHistory{}).
		Where("responder_id = ?", responderID).
		Count(&n).Error
	if err != nil {
		return 0, wrap("count responder history", err)
	}
	return n, nil
}

// IsNotFound reports whether err means the responder does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
