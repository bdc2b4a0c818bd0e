package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"insights/internal/database"
	"insights/internal/models"
)

// lead rows carry the tenant column that models.Lead does not expose
type leadRow struct {
	site string
	models.Lead
}

// memStore evaluates database.Query filters, orders and limits over in-memory rows
type memStore struct {
	mu       sync.Mutex
	messages []models.ChatMessage
	leads    []leadRow

	// Optional hooks
	delay func(q database.Query) time.Duration
	fail  func(table string, q database.Query) error

	calls atomic.Int64
}

func (s *memStore) hooks(ctx context.Context, table string, q database.Query) error {
	s.calls.Add(1)

	if s.fail != nil {
		if err := s.fail(table, q); err != nil {
			return err
		}
	}
	if s.delay != nil {
		if d := s.delay(q); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return ctx.Err()
}

func (s *memStore) Messages(ctx context.Context, q database.Query) ([]models.ChatMessage, error) {
	if err := s.hooks(ctx, database.TableChatHistory, q); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ChatMessage
	for _, m := range s.messages {
		if matches(q.Filters, func(col string) any { return messageField(m, col) }) {
			out = append(out, m)
		}
	}
	sortRows(out, q.Orders, messageField)
	return takeN(out, q.Limit), nil
}

func (s *memStore) CountMessages(ctx context.Context, q database.Query) (int, error) {
	rows, err := s.Messages(ctx, database.Query{Filters: q.Filters})
	return len(rows), err
}

func (s *memStore) Leads(ctx context.Context, q database.Query) ([]models.Lead, error) {
	if err := s.hooks(ctx, database.TableLeads, q); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Lead
	for _, l := range s.leads {
		if matches(q.Filters, func(col string) any { return leadField(l, col) }) {
			out = append(out, l.Lead)
		}
	}
	sortRows(out, q.Orders, func(l models.Lead, col string) any { return leadField(leadRow{Lead: l}, col) })
	return takeN(out, q.Limit), nil
}

func messageField(m models.ChatMessage, col string) any {
	switch col {
	case "site_id":
		return m.SiteID
	case "session_id":
		return m.SessionID
	case "role":
		return m.Role
	case "intent":
		return m.Intent
	case "lang":
		return m.Language
	case "user_sentiment":
		return m.Sentiment
	case "answer_confidence":
		return m.AnswerConfidence
	case "content":
		return m.Content
	case "created_at":
		return m.CreatedAt
	}
	return nil
}

func leadField(l leadRow, col string) any {
	switch col {
	case "site_id":
		return l.site
	case "email":
		return l.Email
	case "phone":
		return l.Phone
	case "intent":
		return l.Intent
	case "created_at":
		return l.CreatedAt
	}
	return nil
}

// deref unwraps nullable columns; ok is false for SQL NULL
func deref(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case *string:
		if x == nil {
			return nil, false
		}
		return *x, true
	case *float64:
		if x == nil {
			return nil, false
		}
		return *x, true
	}
	return v, true
}

// compare returns -1, 0 or 1; NULL never compares
func compare(a, b any) (int, bool) {
	a, okA := deref(a)
	b, okB := deref(b)
	if !okA || !okB {
		return 0, false
	}

	switch x := a.(type) {
	case string:
		y := b.(string)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case time.Time:
		return x.Compare(b.(time.Time)), true
	}
	return 0, false
}

func matches(filters []database.Filter, field func(string) any) bool {
	for _, f := range filters {
		c, ok := compare(field(f.Column), f.Value)
		if !ok {
			return false
		}
		var pass bool
		switch f.Op {
		case database.OpEq:
			pass = c == 0
		case database.OpNeq:
			pass = c != 0
		case database.OpLt:
			pass = c < 0
		case database.OpLte:
			pass = c <= 0
		case database.OpGt:
			pass = c > 0
		case database.OpGte:
			pass = c >= 0
		}
		if !pass {
			return false
		}
	}
	return true
}

func sortRows[T any](rows []T, orders []database.Order, field func(T, string) any) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orders {
			c, ok := compare(field(rows[i], o.Column), field(rows[j], o.Column))
			if !ok || c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func takeN[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

// fixtures

var epoch = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func str(s string) *string { return &s }
func f64(f float64) *float64 { return &f }
func at(minutes int) time.Time { return epoch.Add(time.Duration(minutes) * time.Minute) }
func sid(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type msg struct {
	site, session, role string
	intent, lang, sent  *string
	conf                *float64
	content             *string
	minute              int
}

func (m msg) row(id int64) models.ChatMessage {
	site := m.site
	if site == "" {
		site = "T1"
	}
	return models.ChatMessage{
		ID:               id,
		SiteID:           site,
		SessionID:        sid(m.session),
		Role:             m.role,
		Intent:           m.intent,
		Language:         m.lang,
		Sentiment:        m.sent,
		AnswerConfidence: m.conf,
		Content:          m.content,
		CreatedAt:        at(m.minute),
	}
}

func newStore(msgs ...msg) *memStore {
	s := &memStore{}
	for i, m := range msgs {
		s.messages = append(s.messages, m.row(int64(i+1)))
	}
	return s
}

func (s *memStore) withLeads(site string, leads ...models.Lead) *memStore {
	for _, l := range leads {
		s.leads = append(s.leads, leadRow{site: site, Lead: l})
	}
	return s
}
