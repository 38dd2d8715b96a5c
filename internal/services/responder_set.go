// Package services – ResponderSet
//
// ResponderSet holds the compiled, priority-ordered rules used by the
// dispatch path. Load reads every rule from the store, compiles each one and
// installs the result as an immutable Snapshot. Readers call Current (or
// Match) without locking; loads are serialized so that a slower, older load
// can never overwrite a newer snapshot.
package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-responder-bot/internal/repo"
	"github.com/tbourn/go-responder-bot/internal/responder"
)

// Rule is one compiled responder in a Snapshot.
type Rule struct {
	ID       int64
	Priority int
	Pattern  *responder.Pattern
}

// Snapshot is an immutable, ordered set of compiled rules.
type Snapshot struct {
	Rules    []Rule
	Skipped  []int64 // ids of stored rules that failed to compile
	LoadedAt time.Time
}

// Responders returns the rules as responder.Responder values, in order.
func (s *Snapshot) Responders() []responder.Responder {
	out := make([]responder.Responder, len(s.Rules))
	for i := range s.Rules {
		out[i] = s.Rules[i].Pattern
	}
	return out
}

// RuleMatch is the outcome of one rule in a dry run.
type RuleMatch struct {
	ID        int64    `json:"id"`
	Pattern   string   `json:"pattern"`
	Responses []string `json:"responses"`
}

var emptySnapshot = &Snapshot{}

// ResponderSet is the live rule set. The zero value is not usable; construct
// with NewResponderSet.
type ResponderSet struct {
	DB           *gorm.DB
	Repo         ResponderRepo
	Schema       *repo.SchemaGuard
	MatchTimeout time.Duration

	mu  sync.Mutex // serializes Load
	cur atomic.Pointer[Snapshot]
}

// NewResponderSet returns an empty set backed by db.
func NewResponderSet(db *gorm.DB, schema *repo.SchemaGuard, matchTimeout time.Duration) *ResponderSet {
	return &ResponderSet{DB: db, Repo: GormResponderRepo{}, Schema: schema, MatchTimeout: matchTimeout}
}

// Load rebuilds the set from the store and installs it. On error the
// previously installed snapshot stays in place.
func (s *ResponderSet) Load(ctx context.Context) (*Snapshot, error) {
	ctx, span := otel.Tracer("services/ResponderSet").Start(ctx, "Load")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Schema != nil {
		if err := s.Schema.Ensure(ctx, s.DB); err != nil {
			reloads.WithLabelValues("error").Inc()
			return nil, err
		}
	}
	rows, err := s.Repo.ListResponders(ctx, s.DB, repo.ByPriority)
	if err != nil {
		reloads.WithLabelValues("error").Inc()
		return nil, err
	}

	snap := &Snapshot{Rules: make([]Rule, 0, len(rows)), LoadedAt: time.Now().UTC()}
	for _, r := range rows {
		p, err := responder.NewPattern(r.Pattern, r.Flags, r.Response, responder.WithMatchTimeout(s.MatchTimeout))
		if err != nil {
			log.Warn().Err(err).Int64("responder_id", r.ID).Msg("skipping responder that does not compile")
			snap.Skipped = append(snap.Skipped, r.ID)
			rulesSkipped.Inc()
			continue
		}
		snap.Rules = append(snap.Rules, Rule{ID: r.ID, Priority: r.Priority, Pattern: p})
	}

	s.cur.Store(snap)
	rulesLoaded.Set(float64(len(snap.Rules)))
	reloads.WithLabelValues("ok").Inc()
	span.SetAttributes(
		attribute.Int("rules.loaded", len(snap.Rules)),
		attribute.Int("rules.skipped", len(snap.Skipped)),
	)
	log.Info().Int("rules", len(snap.Rules)).Int("skipped", len(snap.Skipped)).Msg("responder set loaded")
	return snap, nil
}

// Current returns the installed snapshot, or an empty one before the first
// successful Load.
func (s *ResponderSet) Current() *Snapshot {
	if snap := s.cur.Load(); snap != nil {
		return snap
	}
	return emptySnapshot
}

// Match runs message against the current snapshot. See responder.Respond.
func (s *ResponderSet) Match(message string) (string, bool) {
	return responder.Respond(s.Current().Responders(), message)
}

// Explain runs message against every rule of the current snapshot and
// reports the rules that produced responses, in dispatch order.
func (s *ResponderSet) Explain(message string) []RuleMatch {
	snap := s.Current()
	out := []RuleMatch{}
	for _, r := range snap.Rules {
		if res := r.Pattern.Responses(message); len(res) > 0 {
			out = append(out, RuleMatch{ID: r.ID, Pattern: r.Pattern.String(), Responses: res})
		}
	}
	return out
}
