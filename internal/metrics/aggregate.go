package metrics

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"insights/internal/daterange"
	"insights/internal/models"
)

// Buckets for rows without a label
const (
	UnknownLabel     = "unknown"
	UnknownLeadLabel = "Unknown"
)

// CountSessions counts distinct non-empty session ids among assistant replies
func (e *Engine) CountSessions(ctx context.Context, tenant string, key daterange.Key) Result[int] {
	return evaluate(ctx, e, "sessions", tenant, key, func(ctx context.Context, b daterange.Bounds) (int, error) {
		return e.sessionCount(ctx, tenant, b)
	})
}

func (e *Engine) sessionCount(ctx context.Context, tenant string, b daterange.Bounds) (int, error) {
	rows, err := e.store.Messages(ctx, scope(tenant, b).Select("session_id").Eq("role", models.RoleAssistant))
	if err != nil {
		return 0, err
	}

	sessions := make(map[string]struct{})
	for _, r := range rows {
		if id := models.Deref(r.SessionID); id != "" {
			sessions[id] = struct{}{}
		}
	}
	return len(sessions), nil
}

// AverageDepth is total rows (all roles) per distinct session; 0 without sessions
func (e *Engine) AverageDepth(ctx context.Context, tenant string, key daterange.Key) Result[float64] {
	return evaluate(ctx, e, "depth", tenant, key, func(ctx context.Context, b daterange.Bounds) (float64, error) {
		var total, sessions int

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			total, err = e.store.CountMessages(gctx, scope(tenant, b))
			return err
		})
		g.Go(func() error {
			var err error
			sessions, err = e.sessionCount(gctx, tenant, b)
			return err
		})
		if err := g.Wait(); err != nil {
			return 0, err
		}

		if sessions == 0 {
			return 0, nil
		}
		return float64(total) / float64(sessions), nil
	})
}

// Depth returns the raw average together with the halved "turns" estimate
func (e *Engine) Depth(ctx context.Context, tenant string, key daterange.Key) Result[models.DepthStats] {
	return Map(e.AverageDepth(ctx, tenant, key), depthStats)
}

func depthStats(avg float64) models.DepthStats {
	return models.DepthStats{MessagesPerSession: avg, TurnsPerSession: avg / 2}
}

// TallySentiment classifies assistant replies by label prefix after case folding
func (e *Engine) TallySentiment(ctx context.Context, tenant string, key daterange.Key) Result[models.SentimentTally] {
	return evaluate(ctx, e, "sentiment", tenant, key, func(ctx context.Context, b daterange.Bounds) (models.SentimentTally, error) {
		rows, err := e.store.Messages(ctx, scope(tenant, b).Select("user_sentiment").Eq("role", models.RoleAssistant))
		if err != nil {
			return models.SentimentTally{}, err
		}

		// Casers are stateful, one per call
		fold := cases.Fold()
		var tally models.SentimentTally
		for _, r := range rows {
			switch label := fold.String(models.Deref(r.Sentiment)); {
			case strings.HasPrefix(label, "pos"):
				tally.Positive++
			case strings.HasPrefix(label, "neg"):
				tally.Negative++
			default:
				tally.Neutral++
			}
		}
		return tally, nil
	})
}

// TallyIntents groups assistant replies by intent
func (e *Engine) TallyIntents(ctx context.Context, tenant string, key daterange.Key) Result[models.Tally] {
	return e.tallyColumn(ctx, "intents", "intent", tenant, key, func(m models.ChatMessage) *string { return m.Intent })
}

// TallyLanguages groups assistant replies by detected language
func (e *Engine) TallyLanguages(ctx context.Context, tenant string, key daterange.Key) Result[models.Tally] {
	return e.tallyColumn(ctx, "languages", "lang", tenant, key, func(m models.ChatMessage) *string { return m.Language })
}

func (e *Engine) tallyColumn(ctx context.Context, metric, column, tenant string, key daterange.Key, label func(models.ChatMessage) *string) Result[models.Tally] {
	return evaluate(ctx, e, metric, tenant, key, func(ctx context.Context, b daterange.Bounds) (models.Tally, error) {
		rows, err := e.store.Messages(ctx, scope(tenant, b).Select(column).Eq("role", models.RoleAssistant))
		if err != nil {
			return nil, err
		}

		tally := make(models.Tally)
		for _, r := range rows {
			tally.Add(label(r), UnknownLabel)
		}
		return tally, nil
	})
}

// LowConfidenceQuestions lists up to limit assistant replies under the confidence
// threshold, lowest first, each paired with the user question that preceded it in
// the same session. limit <= 0 uses the configured default and larger limits
// are clamped to the configured maximum.
func (e *Engine) LowConfidenceQuestions(ctx context.Context, tenant string, key daterange.Key, limit int) Result[[]models.LowConfidenceQuestion] {
	if limit <= 0 {
		limit = e.cfg.LowConfidenceLimit
	}
	limit = min(limit, e.cfg.LowConfidenceMaxLimit)

	metric := "low-confidence:" + strconv.Itoa(limit)
	return evaluate(ctx, e, metric, tenant, key, func(ctx context.Context, b daterange.Bounds) ([]models.LowConfidenceQuestion, error) {
		return e.lowConfidence(ctx, tenant, b, limit)
	})
}

func (e *Engine) lowConfidence(ctx context.Context, tenant string, b daterange.Bounds, limit int) ([]models.LowConfidenceQuestion, error) {
	base := scope(tenant, b)

	replies, err := e.store.Messages(ctx, base.
		Select("session_id", "answer_confidence", "created_at").
		Eq("role", models.RoleAssistant).
		Lt("answer_confidence", e.cfg.LowConfidenceThreshold).
		Asc("answer_confidence").
		Take(limit))
	if err != nil {
		return nil, err
	}

	out := make([]models.LowConfidenceQuestion, len(replies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FanOutConcurrency)
	for i, reply := range replies {
		i, reply := i, reply
		if reply.AnswerConfidence != nil {
			out[i].Confidence = *reply.AnswerConfidence
		}

		session := models.Deref(reply.SessionID)
		if session == "" {
			continue
		}

		// Each lookup writes only its own slot, so order follows the replies
		g.Go(func() error {
			questions, err := e.store.Messages(gctx, base.
				Select("content").
				Eq("session_id", session).
				Eq("role", models.RoleUser).
				Lt("created_at", reply.CreatedAt).
				Desc("created_at").
				Take(1))
			if err != nil {
				return err
			}
			if len(questions) > 0 {
				out[i].Question = models.Deref(questions[0].Content)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// ListLeads returns every lead in range, newest first, valid or not
func (e *Engine) ListLeads(ctx context.Context, tenant string, key daterange.Key) Result[[]models.Lead] {
	return evaluate(ctx, e, "leads", tenant, key, func(ctx context.Context, b daterange.Bounds) ([]models.Lead, error) {
		leads, err := e.store.Leads(ctx, scope(tenant, b).Desc("created_at"))
		if err != nil {
			return nil, err
		}
		if leads == nil {
			leads = []models.Lead{}
		}
		return leads, nil
	})
}

// ValidLeadCount counts leads carrying an email or a phone number
func (e *Engine) ValidLeadCount(ctx context.Context, tenant string, key daterange.Key) Result[int] {
	return evaluate(ctx, e, "valid-leads", tenant, key, func(ctx context.Context, b daterange.Bounds) (int, error) {
		return e.validLeadCount(ctx, tenant, b)
	})
}

func (e *Engine) validLeadCount(ctx context.Context, tenant string, b daterange.Bounds) (int, error) {
	leads, err := e.store.Leads(ctx, scope(tenant, b).Select("email", "phone"))
	if err != nil {
		return 0, err
	}
	return len(ValidLeads(leads)), nil
}

// LeadIntents groups valid leads by the intent they were captured under
func (e *Engine) LeadIntents(ctx context.Context, tenant string, key daterange.Key) Result[models.Tally] {
	return evaluate(ctx, e, "lead-intents", tenant, key, func(ctx context.Context, b daterange.Bounds) (models.Tally, error) {
		leads, err := e.store.Leads(ctx, scope(tenant, b).Select("email", "phone", "intent"))
		if err != nil {
			return nil, err
		}

		tally := make(models.Tally)
		for _, l := range ValidLeads(leads) {
			tally.Add(l.Intent, UnknownLeadLabel)
		}
		return tally, nil
	})
}

// LeadConversionRate is valid leads per session. Both dependencies are
// resolved first; the rate is null when there are no sessions.
func (e *Engine) LeadConversionRate(ctx context.Context, tenant string, key daterange.Key) Result[float64] {
	var sessions, leads Result[int]

	var g errgroup.Group
	g.Go(func() error {
		sessions = e.CountSessions(ctx, tenant, key)
		return nil
	})
	g.Go(func() error {
		leads = e.ValidLeadCount(ctx, tenant, key)
		return nil
	})
	_ = g.Wait()

	return ComposeRate(sessions, leads)
}

// ValidLeads filters out leads with neither email nor phone
func ValidLeads(leads []models.Lead) []models.Lead {
	valid := make([]models.Lead, 0, len(leads))
	for _, l := range leads {
		if l.Valid() {
			valid = append(valid, l)
		}
	}
	return valid
}

// TopN orders a tally by count (desc) then name (asc) and keeps the first n; n <= 0 keeps all
func TopN(t models.Tally, n int) []models.TallyEntry {
	entries := make([]models.TallyEntry, 0, len(t))
	for name, count := range t {
		entries = append(entries, models.TallyEntry{Name: name, Count: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
