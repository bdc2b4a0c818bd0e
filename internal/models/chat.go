package models

import "time"

// Message roles stored in chat_history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents one conversational turn from chat_history.
// Nullable columns are pointers; rows are read-only for this service.
type ChatMessage struct {
	ID               int64     `db:"id" json:"id"`
	SiteID           string    `db:"site_id" json:"site_id"`
	SessionID        *string   `db:"session_id" json:"session_id"`
	Role             string    `db:"role" json:"role"`
	Intent           *string   `db:"intent" json:"intent"`
	Language         *string   `db:"lang" json:"lang"`
	Sentiment        *string   `db:"user_sentiment" json:"user_sentiment"`
	AnswerConfidence *float64  `db:"answer_confidence" json:"answer_confidence"`
	Content          *string   `db:"content" json:"content"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Lead represents a captured contact from the leads table
// @Description Captured lead
type Lead struct {
	Name      *string   `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone"`
	Intent    *string   `db:"intent" json:"intent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Valid reports whether the lead carries a way to reach the contact
func (l Lead) Valid() bool {
	return Deref(l.Email) != "" || Deref(l.Phone) != ""
}

// Profile maps an authenticated user to the site (tenant) they administer
// @Description Dashboard user profile
type Profile struct {
	ID     string  `db:"id" json:"id"`
	SiteID string  `db:"site_id" json:"site_id"`
	Domain *string `db:"domain" json:"domain,omitempty"`
	Plan   *string `db:"plan" json:"plan,omitempty"`
}

// Deref returns the pointed-to string or "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
