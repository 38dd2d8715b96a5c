// Responder admin HTTP handlers.
//
// This file exposes REST endpoints for responder rules:
//   - GET    /responders               (list, ordered, ETag support)
//   - GET    /responders/{id}          (read)
//   - GET    /responders/{id}/history  (audit trail)
//   - POST   /responders               (create, Idempotency-Key support)
//   - PATCH  /responders/{id}          (partial update)
//   - DELETE /responders/{id}          (delete)
//   - POST   /responders/test          (dry run against the active set)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-responder-bot/internal/domain"
	"github.com/tbourn/go-responder-bot/internal/http/middleware"
	"github.com/tbourn/go-responder-bot/internal/repo"
	"github.com/tbourn/go-responder-bot/internal/responder"
	"github.com/tbourn/go-responder-bot/internal/services"
	"github.com/tbourn/go-responder-bot/internal/utils"
)

//
// Service contracts (context-aware)
//

// ResponderService defines rule management operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use.
type ResponderService interface {
	CreateOrUpdate(ctx context.Context, params services.ResponderParams, editedBy string) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Responder, error)
	List(ctx context.Context, order repo.Order) ([]domain.Responder, error)
	Delete(ctx context.Context, id int64) error
	History(ctx context.Context, id int64) ([]domain.ResponderHistory, error)
}

// RuleSet is the live, compiled rule set used for dry runs.
type RuleSet interface {
	Match(message string) (string, bool)
	Explain(message string) []services.RuleMatch
}

//
// Handler wiring
//

// Handlers groups the admin endpoints.
type Handlers struct {
	svc ResponderService
	set RuleSet

	// IdempotencyTTL bounds how long a create can be replayed.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(svc ResponderService, set RuleSet) *Handlers {
	return &Handlers{svc: svc, set: set, IdempotencyTTL: 24 * time.Hour}
}

// db returns the store handle behind svc when it is the GORM-backed service.
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.svc.(*services.ResponderService); ok {
		return svc.DB
	}
	return nil
}

//
// DTOs
//

// CreateResponderRequest is the JSON payload for creating a responder.
type CreateResponderRequest struct {
	Pattern  string `json:"pattern"  example:"\\b(PD|DAT)-(\\d+)\\b"`
	Flags    string `json:"flags"    example:"gi"`
	Response string `json:"response" example:"https://tracker.example.com/browse/$1-$2"`
	Priority int    `json:"priority" example:"10"`
}

// UpdateResponderRequest is the JSON payload for a partial update. Omitted
// fields are left unchanged.
type UpdateResponderRequest struct {
	Pattern  *string `json:"pattern,omitempty"`
	Flags    *string `json:"flags,omitempty"`
	Response *string `json:"response,omitempty"`
	Priority *int    `json:"priority,omitempty"`
}

// ResponderIDResponse carries the id of a created or updated responder.
type ResponderIDResponse struct {
	ID int64 `json:"id" example:"7"`
}

// ListRespondersResponse wraps the rule list.
type ListRespondersResponse struct {
	Responders []domain.Responder `json:"responders"`
}

// HistoryResponse wraps an audit trail, newest first.
type HistoryResponse struct {
	History []domain.ResponderHistory `json:"history"`
}

// TestMessageRequest is a dry-run message.
type TestMessageRequest struct {
	Text string `json:"text" example:"see PD-42"`
}

// TestMessageResponse reports what the bot would reply.
type TestMessageResponse struct {
	Matched bool                 `json:"matched"`
	Reply   string               `json:"reply"`
	Rules   []services.RuleMatch `json:"rules"`
}

//
// Helpers
//

// parseID reads the :id path parameter.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "responder id must be a positive integer")
		return 0, false
	}
	return id, true
}

// idempotencyKey returns the key validated by
// middleware.IdempotencyValidator, falling back to the raw header when the
// middleware is not installed.
func idempotencyKey(c *gin.Context) (string, bool) {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k, true
	}
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)); v != "" {
		return v, true
	}
	return "", false
}

// failService maps service and store errors to the error envelope.
func failService(c *gin.Context, err error) {
	var (
		pe *responder.PatternCompileError
		ve *services.ValidationError
		se *repo.StorageError
	)
	switch {
	case errors.As(err, &pe):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidPattern, pe.Error())
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, ve.Error())
	case errors.Is(err, services.ErrResponderNotFound), errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "responder not found")
	case errors.Is(err, repo.ErrInvalidOrder):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.As(err, &se):
		fail(c, http.StatusInternalServerError, ErrCodeStorage, se.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// ListResponders godoc
// @ID          listResponders
// @Summary     List responders
// @Description Returns every responder rule. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Responders
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       order_by       query   string  false "Sort column" Enums(id, pattern, flags, response, priority, created_on, edited_on) default(id)
// @Param       order_dir      query   string  false "Sort direction" Enums(asc, desc) default(asc)
//
// @Success     200  {object} handlers.ListRespondersResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad order"
// @Failure     500  {object} handlers.ErrorResponse "Storage error"
// @Router      /responders [get]
func (h *Handlers) ListResponders(c *gin.Context) {
	ctx := c.Request.Context()
	order := repo.Order{By: c.Query("order_by"), Direction: c.Query("order_dir")}

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.ResponderStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"responders:%d:%d:%s:%s"`, count, ts,
				strings.ToLower(order.By), strings.ToLower(order.Direction))
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.svc.List(ctx, order)
	if err != nil {
		failService(c, err)
		return
	}
	if items == nil {
		items = []domain.Responder{}
	}
	ok(c, http.StatusOK, ListRespondersResponse{Responders: items})
}

// GetResponder godoc
// @ID          getResponder
// @Summary     Get a responder
// @Tags        Responders
// @Produce     json
// @Param       id   path  int  true  "Responder ID"
// @Success     200  {object} domain.Responder
// @Failure     400  {object} handlers.ErrorResponse "Bad id"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /responders/{id} [get]
func (h *Handlers) GetResponder(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	r, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// ResponderHistory godoc
// @ID          responderHistory
// @Summary     Audit trail of a responder
// @Description Returns pre-update snapshots, newest first. Deleted responders keep their history.
// @Tags        Responders
// @Produce     json
// @Param       id     path   int  true   "Responder ID"
// @Param       limit  query  int  false  "Max entries" minimum(1) maximum(500) default(50)
// @Success     200  {object} handlers.HistoryResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad id"
// @Failure     500  {object} handlers.ErrorResponse "Storage error"
// @Router      /responders/{id}/history [get]
func (h *Handlers) ResponderHistory(c *gin.Context) {
	const (
		defaultLimit = 50
		maxLimit     = 500
	)
	id, valid := parseID(c)
	if !valid {
		return
	}
	limit := utils.LimitParam(c.Query("limit"), defaultLimit, maxLimit)

	hist, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	if len(hist) > limit {
		hist = hist[:limit]
	}
	if hist == nil {
		hist = []domain.ResponderHistory{}
	}
	ok(c, http.StatusOK, HistoryResponse{History: hist})
}

// CreateResponder godoc
// @ID          createResponder
// @Summary     Create a responder
// @Description Compiles the pattern, stores the rule and reloads the live set.
// @Tags        Responders
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Operator id"
// @Param       Idempotency-Key  header  string  false "Replay-safe create key"
// @Param       body             body    handlers.CreateResponderRequest  true  "Rule"
//
// @Success     201  {object}  handlers.ResponderIDResponse
// @Success     200  {object}  handlers.ResponderIDResponse "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     422  {object}  handlers.ErrorResponse  "Invalid pattern"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage error"
// @Router      /responders [post]
func (h *Handlers) CreateResponder(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateResponderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	actor := middleware.OperatorID(c)
	db := h.db()

	// Idempotency (replay path).
	idemKey, _ := idempotencyKey(c)
	if idemKey != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, actor, idemKey, time.Now().UTC()); err == nil && rec != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, ResponderIDResponse{ID: rec.ResponderID})
			return
		}
	}

	id, err := h.svc.CreateOrUpdate(ctx, services.ResponderParams{
		Pattern:  &req.Pattern,
		Flags:    &req.Flags,
		Response: &req.Response,
		Priority: &req.Priority,
	}, actor)
	if err != nil {
		failService(c, err)
		return
	}

	// Idempotency (store path), best effort.
	if idemKey != "" && db != nil {
		_, _ = repo.CreateIdempotency(ctx, db, actor, idemKey, id, http.StatusCreated, h.IdempotencyTTL)
	}

	c.Header("Location", fmt.Sprintf("%s/%d", strings.TrimSuffix(c.FullPath(), "/"), id))
	ok(c, http.StatusCreated, ResponderIDResponse{ID: id})
}

// UpdateResponder godoc
// @ID          updateResponder
// @Summary     Update a responder
// @Description Applies the supplied fields, records the previous values in the audit trail and reloads the live set. An empty body changes nothing.
// @Tags        Responders
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Operator id"
// @Param       id         path    int     true  "Responder ID"
// @Param       body       body    handlers.UpdateResponderRequest  true  "Fields to change"
//
// @Success     200  {object}  handlers.ResponderIDResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Invalid pattern"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage error"
// @Router      /responders/{id} [patch]
func (h *Handlers) UpdateResponder(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	var req UpdateResponderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	got, err := h.svc.CreateOrUpdate(c.Request.Context(), services.ResponderParams{
		ID:       &id,
		Pattern:  req.Pattern,
		Flags:    req.Flags,
		Response: req.Response,
		Priority: req.Priority,
	}, middleware.OperatorID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ResponderIDResponse{ID: got})
}

// DeleteResponder godoc
// @ID          deleteResponder
// @Summary     Delete a responder
// @Description Hard delete. The audit trail is kept.
// @Tags        Responders
// @Param       id   path  int  true  "Responder ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage error"
// @Router      /responders/{id} [delete]
func (h *Handlers) DeleteResponder(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// TestMessage godoc
// @ID          testMessage
// @Summary     Dry-run a message
// @Description Runs text against the active rule set without posting anything.
// @Tags        Responders
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.TestMessageRequest  true  "Message"
// @Success     200  {object}  handlers.TestMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /responders/test [post]
func (h *Handlers) TestMessage(c *gin.Context) {
	var req TestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrEmptyMessage.Error())
		return
	}
	reply, matched := h.set.Match(req.Text)
	ok(c, http.StatusOK, TestMessageResponse{
		Matched: matched,
		Reply:   reply,
		Rules:   h.set.Explain(req.Text),
	})
}
