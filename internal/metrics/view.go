package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"insights/internal/daterange"
	"insights/internal/models"
)

// Summary is every dashboard metric for one tenant and range
// @Description Dashboard metrics, each with its own loading/error state
type Summary struct {
	Range         daterange.Key                          `json:"range"`
	Since         *time.Time                             `json:"since"`
	Until         *time.Time                             `json:"until"`
	RefreshedAt   *time.Time                             `json:"refreshed_at,omitempty"`
	Sessions      Result[int]                            `json:"sessions"`
	Depth         Result[models.DepthStats]              `json:"depth"`
	Sentiment     Result[models.SentimentTally]          `json:"sentiment"`
	Intents       Result[models.Tally]                   `json:"intents"`
	Languages     Result[models.Tally]                   `json:"languages"`
	LowConfidence Result[[]models.LowConfidenceQuestion] `json:"low_confidence"`
	Leads         Result[[]models.Lead]                  `json:"leads"`
	ValidLeads    Result[int]                            `json:"valid_leads"`
	LeadIntents   Result[models.Tally]                   `json:"lead_intents"`
	LeadRate      Result[float64]                        `json:"lead_rate"`
}

// View is the live dashboard state of one tenant. Refresh re-enters loading for
// every metric and settles them as their queries finish; a newer Refresh cancels
// the older one and its late results are dropped.
type View struct {
	engine *Engine
	tenant string

	mu          sync.Mutex
	cancel      context.CancelFunc
	rangeKey    daterange.Key
	bounds      daterange.Bounds
	refreshedAt *time.Time

	sessions      *Cell[int]
	depth         *Cell[models.DepthStats]
	sentiment     *Cell[models.SentimentTally]
	intents       *Cell[models.Tally]
	languages     *Cell[models.Tally]
	lowConfidence *Cell[[]models.LowConfidenceQuestion]
	leads         *Cell[[]models.Lead]
	validLeads    *Cell[int]
	leadIntents   *Cell[models.Tally]
	leadRate      *Cell[float64]
}

// NewView creates an idle view; every metric reports loading until the first refresh settles
func NewView(engine *Engine, tenant string) *View {
	return &View{
		engine:        engine,
		tenant:        tenant,
		rangeKey:      daterange.All,
		sessions:      NewCell[int](),
		depth:         NewCell[models.DepthStats](),
		sentiment:     NewCell[models.SentimentTally](),
		intents:       NewCell[models.Tally](),
		languages:     NewCell[models.Tally](),
		lowConfidence: NewCell[[]models.LowConfidenceQuestion](),
		leads:         NewCell[[]models.Lead](),
		validLeads:    NewCell[int](),
		leadIntents:   NewCell[models.Tally](),
		leadRate:      NewCell[float64](),
	}
}

// Tenant returns the site the view reports on
func (v *View) Tenant() string {
	return v.tenant
}

// Refresh recomputes every metric for key. The returned channel is closed once
// this invocation has finished, whether or not it was superseded.
func (v *View) Refresh(ctx context.Context, key daterange.Key) <-chan struct{} {
	ctx, cancel := context.WithCancel(ctx)

	// Every metric of this refresh shares the bounds reported in the snapshot
	e := v.engine.At(v.engine.now())

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.cancel = cancel
	v.rangeKey = key
	v.bounds = e.Bounds(key)
	v.refreshedAt = nil

	// Ids are taken under the lock so two refreshes cannot interleave their Begin calls
	var (
		sessionsID      = v.sessions.Begin()
		depthID         = v.depth.Begin()
		sentimentID     = v.sentiment.Begin()
		intentsID       = v.intents.Begin()
		languagesID     = v.languages.Begin()
		lowConfidenceID = v.lowConfidence.Begin()
		leadsID         = v.leads.Begin()
		validLeadsID    = v.validLeads.Begin()
		leadIntentsID   = v.leadIntents.Begin()
		leadRateID      = v.leadRate.Begin()
	)
	v.mu.Unlock()

	tenant := v.tenant
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer cancel()

		var g errgroup.Group
		sessions := track(&g, v.sessions, sessionsID, func() Result[int] {
			return e.CountSessions(ctx, tenant, key)
		})
		track(&g, v.depth, depthID, func() Result[models.DepthStats] {
			return e.Depth(ctx, tenant, key)
		})
		track(&g, v.sentiment, sentimentID, func() Result[models.SentimentTally] {
			return e.TallySentiment(ctx, tenant, key)
		})
		track(&g, v.intents, intentsID, func() Result[models.Tally] {
			return e.TallyIntents(ctx, tenant, key)
		})
		track(&g, v.languages, languagesID, func() Result[models.Tally] {
			return e.TallyLanguages(ctx, tenant, key)
		})
		track(&g, v.lowConfidence, lowConfidenceID, func() Result[[]models.LowConfidenceQuestion] {
			return e.LowConfidenceQuestions(ctx, tenant, key, 0)
		})
		track(&g, v.leads, leadsID, func() Result[[]models.Lead] {
			return e.ListLeads(ctx, tenant, key)
		})
		validLeads := track(&g, v.validLeads, validLeadsID, func() Result[int] {
			return e.ValidLeadCount(ctx, tenant, key)
		})
		track(&g, v.leadIntents, leadIntentsID, func() Result[models.Tally] {
			return e.LeadIntents(ctx, tenant, key)
		})
		_ = g.Wait()

		// The rate only composes once both of its dependencies have settled
		if v.leadRate.Settle(leadRateID, ComposeRate(*sessions, *validLeads)) {
			now := v.engine.now()
			v.mu.Lock()
			v.refreshedAt = &now
			v.mu.Unlock()
		}
	}()

	return done
}

// track computes one metric on g and settles its cell. The returned pointer is
// only valid to read after g.Wait.
func track[T any](g *errgroup.Group, cell *Cell[T], id uuid.UUID, compute func() Result[T]) *Result[T] {
	out := new(Result[T])
	g.Go(func() error {
		*out = compute()
		cell.Settle(id, *out)
		return nil
	})
	return out
}

// Snapshot returns the currently observed state of every metric
func (v *View) Snapshot() Summary {
	v.mu.Lock()
	defer v.mu.Unlock()

	return Summary{
		Range:         v.rangeKey,
		Since:         v.bounds.Since,
		Until:         v.bounds.Until,
		RefreshedAt:   v.refreshedAt,
		Sessions:      v.sessions.Result(),
		Depth:         v.depth.Result(),
		Sentiment:     v.sentiment.Result(),
		Intents:       v.intents.Result(),
		Languages:     v.languages.Result(),
		LowConfidence: v.lowConfidence.Result(),
		Leads:         v.leads.Result(),
		ValidLeads:    v.validLeads.Result(),
		LeadIntents:   v.leadIntents.Result(),
		LeadRate:      v.leadRate.Result(),
	}
}

// Summary computes every metric for tenant and key concurrently and waits for all of them
func (e *Engine) Summary(ctx context.Context, tenant string, key daterange.Key) Summary {
	v := NewView(e, tenant)
	<-v.Refresh(ctx, key)
	return v.Snapshot()
}

// Views keeps one View per tenant
type Views struct {
	engine *Engine
	mu     sync.Mutex
	views  map[string]*View
}

// NewViews creates an empty registry
func NewViews(engine *Engine) *Views {
	return &Views{engine: engine, views: make(map[string]*View)}
}

// Get returns the tenant's view, creating it on first use
func (r *Views) Get(tenant string) *View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.views[tenant]
	if !ok {
		v = NewView(r.engine, tenant)
		r.views[tenant] = v
	}
	return v
}

// Lookup returns the tenant's view if one was created
func (r *Views) Lookup(tenant string) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.views[tenant]
	return v, ok
}
