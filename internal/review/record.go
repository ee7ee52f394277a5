// Package review defines the review record shared by ingestion, storage and
// the analytics engines, together with the closed enumerations for sentiment
// labels and bucketing granularity.
package review

import "time"

// Record is one customer review after formatting, tokenization and sentiment
// classification. Pointer fields are nil when the value is missing.
type Record struct {
	ReviewID          string     `json:"review_id"`
	PublishTime       *time.Time `json:"publish_time"`
	Rating            *float64   `json:"rating"`
	ReviewText        *string    `json:"review_text"`
	CleanTokens       []string   `json:"clean_tokens"`
	SentimentLabel    *Label     `json:"sentiment_label"`
	SentimentScore    *float64   `json:"sentiment_score"`
	WeightedSentiment *float64   `json:"weighted_sentiment"`
	PlaceName         string     `json:"place_name,omitempty"`
	ReplyPublishTime  *time.Time `json:"reply_publish_time,omitempty"`
}

// HasText reports whether the review carries analyzable text.
func (r *Record) HasText() bool {
	return r.ReviewText != nil
}

// Text returns the review text or "" when absent.
func (r *Record) Text() string {
	if r.ReviewText == nil {
		return ""
	}
	return *r.ReviewText
}

// HasLabel reports whether the record is labeled l.
func (r *Record) HasLabel(l Label) bool {
	return r.SentimentLabel != nil && *r.SentimentLabel == l
}

// DeriveWeightedSentiment sets WeightedSentiment to score * rating, or nil
// when either input is missing.
func (r *Record) DeriveWeightedSentiment() {
	if r.SentimentScore == nil || r.Rating == nil {
		r.WeightedSentiment = nil
		return
	}
	w := *r.SentimentScore * *r.Rating
	r.WeightedSentiment = &w
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

// Time returns a pointer to t.
func Time(t time.Time) *time.Time {
	return &t
}

// LabelPtr returns a pointer to l.
func LabelPtr(l Label) *Label {
	return &l
}
