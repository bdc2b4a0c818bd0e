package models

// SentimentTally counts assistant replies per sentiment class
// @Description Sentiment counts for assistant replies
type SentimentTally struct {
	Positive int `json:"positive" example:"12"`
	Neutral  int `json:"neutral" example:"30"`
	Negative int `json:"negative" example:"3"`
}

// LowConfidenceQuestion pairs a low-confidence assistant reply with the user question before it
// @Description Question that received a low-confidence answer
type LowConfidenceQuestion struct {
	Question   string  `json:"question" example:"Do you ship to Canada?"`
	Confidence float64 `json:"confidence" example:"0.42"`
}

// DepthStats is the per-session message average plus the derived turn estimate
// @Description Average conversation depth
type DepthStats struct {
	MessagesPerSession float64 `json:"messages_per_session" example:"6.4"`
	TurnsPerSession    float64 `json:"turns_per_session" example:"3.2"`
}

// Tally is a count per label (intent, language, ...)
type Tally map[string]int

// TallyEntry is one row of a sorted tally
type TallyEntry struct {
	Name  string `json:"name" example:"pricing"`
	Count int    `json:"count" example:"42"`
}

// Add counts one occurrence of label, bucketing nil or empty labels under unknown
func (t Tally) Add(label *string, unknown string) {
	key := Deref(label)
	if key == "" {
		key = unknown
	}
	t[key]++
}
