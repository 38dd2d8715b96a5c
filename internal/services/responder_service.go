// Package services – ResponderService
//
// This file implements ResponderService, the application-level owner of the
// responder rule set. It validates create and update requests, compiles
// patterns before anything reaches the store, delegates persistence to the
// repo package and reloads the live ResponderSet after every mutation so that
// the dispatch path sees changes immediately.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-responder-bot/internal/domain"
	"github.com/tbourn/go-responder-bot/internal/repo"
	"github.com/tbourn/go-responder-bot/internal/responder"
)

// ResponderRepo defines the repository contract required by ResponderService.
type ResponderRepo interface {
	GetResponder(ctx context.Context, db *gorm.DB, id int64) (*domain.Responder, error)
	ListResponders(ctx context.Context, db *gorm.DB, order repo.Order) ([]domain.Responder, error)
	CreateResponder(ctx context.Context, db *gorm.DB, pattern, flags, response string, priority int) (*domain.Responder, error)
	UpdateResponder(ctx context.Context, db *gorm.DB, id int64, fields repo.ResponderFields, editedBy string, validate func(domain.Responder) error) (*domain.Responder, error)
	DeleteResponder(ctx context.Context, db *gorm.DB, id int64) (bool, error)
	ListResponderHistory(ctx context.Context, db *gorm.DB, responderID int64) ([]domain.ResponderHistory, error)
}

// GormResponderRepo adapts the repo package free functions to ResponderRepo.
type GormResponderRepo struct{}

func (GormResponderRepo) GetResponder(ctx context.Context, db *gorm.DB, id int64) (*domain.Responder, error) {
	return repo.GetResponder(ctx, db, id)
}

func (GormResponderRepo) ListResponders(ctx context.Context, db *gorm.DB, order repo.Order) ([]domain.Responder, error) {
	return repo.ListResponders(ctx, db, order)
}

func (GormResponderRepo) CreateResponder(ctx context.Context, db *gorm.DB, pattern, flags, response string, priority int) (*domain.Responder, error) {
	return repo.CreateResponder(ctx, db, pattern, flags, response, priority)
}

func (GormResponderRepo) UpdateResponder(ctx context.Context, db *gorm.DB, id int64, fields repo.ResponderFields, editedBy string, validate func(domain.Responder) error) (*domain.Responder, error) {
	return repo.UpdateResponder(ctx, db, id, fields, editedBy, validate)
}

func (GormResponderRepo) DeleteResponder(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	return repo.DeleteResponder(ctx, db, id)
}

func (GormResponderRepo) ListResponderHistory(ctx context.Context, db *gorm.DB, responderID int64) ([]domain.ResponderHistory, error) {
	return repo.ListResponderHistory(ctx, db, responderID)
}

// ResponderParams is a create-or-update request. A nil ID creates a new
// responder; otherwise only the non-nil fields are changed.
type ResponderParams struct {
	ID       *int64
	Pattern  *string
	Flags    *string
	Response *string
	Priority *int
}

func (p ResponderParams) fields() repo.ResponderFields {
	return repo.ResponderFields{
		Pattern:  p.Pattern,
		Flags:    p.Flags,
		Response: p.Response,
		Priority: p.Priority,
	}
}

// ResponderService manages responder rules.
type ResponderService struct {
	DB   *gorm.DB
	Repo ResponderRepo
	// Set, when non-nil, is reloaded after every successful mutation.
	Set *ResponderSet
	// Schema, when non-nil, is ensured before every store operation.
	Schema *repo.SchemaGuard
}

// NewResponderService constructs a ResponderService backed by the GORM repo.
func NewResponderService(db *gorm.DB, set *ResponderSet, schema *repo.SchemaGuard) *ResponderService {
	return &ResponderService{DB: db, Repo: GormResponderRepo{}, Set: set, Schema: schema}
}

func (s *ResponderService) ensure(ctx context.Context) error {
	if s.Schema == nil {
		return nil
	}
	return s.Schema.Ensure(ctx, s.DB)
}

func (s *ResponderService) reload(ctx context.Context) {
	if s.Set == nil {
		return
	}
	if _, err := s.Set.Load(ctx); err != nil {
		// The mutation is committed; keep serving the previous snapshot.
		log.Error().Err(err).Msg("responder set reload failed")
	}
}

// CreateOrUpdate creates a responder when params.ID is nil and updates it
// otherwise, returning the id of the affected rule.
//
// Create requires a non-blank pattern and response. On update the pattern
// and flags are merged with the stored row and compiled before anything is
// written; an update without fields returns the id and writes nothing.
func (s *ResponderService) CreateOrUpdate(ctx context.Context, params ResponderParams, editedBy string) (int64, error) {
	tr := otel.Tracer("services/ResponderService")
	ctx, span := tr.Start(ctx, "CreateOrUpdate",
		trace.WithAttributes(
			attribute.Bool("responder.create", params.ID == nil),
			attribute.String("user.id", editedBy),
		),
	)
	defer span.End()

	if err := s.ensure(ctx); err != nil {
		return 0, err
	}

	if params.ID == nil {
		return s.create(ctx, params)
	}

	id := *params.ID
	span.SetAttributes(attribute.Int64("responder.id", id))
	fields := params.fields()
	if fields.Empty() {
		return id, nil
	}

	_, err := s.Repo.UpdateResponder(ctx, s.DB, id, fields, editedBy, func(next domain.Responder) error {
		if strings.TrimSpace(next.Pattern) == "" {
			return &ValidationError{Field: "pattern", Reason: "must not be blank"}
		}
		if strings.TrimSpace(next.Response) == "" {
			return &ValidationError{Field: "response", Reason: "must not be blank"}
		}
		return responder.Validate(next.Pattern, next.Flags)
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return 0, ErrResponderNotFound
		}
		return 0, err
	}
	s.reload(ctx)
	return id, nil
}

func (s *ResponderService) create(ctx context.Context, p ResponderParams) (int64, error) {
	if p.Pattern == nil || strings.TrimSpace(*p.Pattern) == "" {
		return 0, &ValidationError{Field: "pattern", Reason: "required"}
	}
	if p.Response == nil || strings.TrimSpace(*p.Response) == "" {
		return 0, &ValidationError{Field: "response", Reason: "required"}
	}
	var flags string
	if p.Flags != nil {
		flags = *p.Flags
	}
	var priority int
	if p.Priority != nil {
		priority = *p.Priority
	}
	if err := responder.Validate(*p.Pattern, flags); err != nil {
		return 0, err
	}

	r, err := s.Repo.CreateResponder(ctx, s.DB, *p.Pattern, flags, *p.Response, priority)
	if err != nil {
		return 0, err
	}
	s.reload(ctx)
	return r.ID, nil
}

// Get returns one responder.
func (s *ResponderService) Get(ctx context.Context, id int64) (*domain.Responder, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	r, err := s.Repo.GetResponder(ctx, s.DB, id)
	if repo.IsNotFound(err) {
		return nil, ErrResponderNotFound
	}
	return r, err
}

// List returns all responders in the requested order.
func (s *ResponderService) List(ctx context.Context, order repo.Order) ([]domain.Responder, error) {
	tr := otel.Tracer("services/ResponderService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("order.by", order.By),
			attribute.String("order.direction", order.Direction),
		),
	)
	defer span.End()

	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return s.Repo.ListResponders(ctx, s.DB, order)
}

// Delete removes a responder. A missing id yields ErrResponderNotFound.
func (s *ResponderService) Delete(ctx context.Context, id int64) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	ok, err := s.Repo.DeleteResponder(ctx, s.DB, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrResponderNotFound
	}
	s.reload(ctx)
	return nil
}

// History returns the audit trail for a responder, newest first. It works
// for deleted responders too.
func (s *ResponderService) History(ctx context.Context, id int64) ([]domain.ResponderHistory, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return s.Repo.ListResponderHistory(ctx, s.DB, id)
}

// IsValidation reports whether err is a request problem (bad fields or a
// pattern that does not compile) rather than a storage failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	var pe *responder.PatternCompileError
	return errors.As(err, &ve) || errors.As(err, &pe)
}
