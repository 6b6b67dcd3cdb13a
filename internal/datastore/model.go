package datastore

import (
	"time"

	"github.com/tphakala/imageclassifier/internal/classifier"
)

// Classification is one completed classification request.
type Classification struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RequestID  string    `gorm:"index;size:64" json:"request_id"`
	Generation uint64    `json:"generation"`
	Failed     bool      `gorm:"index" json:"failed"` // at least one model reported a failure
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	Results    []Result  `gorm:"foreignKey:ClassificationID;constraint:OnDelete:CASCADE" json:"results"`
}

// Result is the rendered outcome of a single model within a Classification.
type Result struct {
	ID               uint   `gorm:"primaryKey" json:"-"`
	ClassificationID uint   `gorm:"index" json:"-"`
	Position         int    `json:"-"` // order of the model within the request
	Model            string `gorm:"size:32" json:"model"`
	Text             string `gorm:"size:512" json:"text"`
}

// NewClassification converts a completed dispatcher state into a history record.
func NewClassification(s classifier.State, now time.Time) *Classification {
	c := &Classification{
		RequestID:  s.RequestID,
		Generation: s.Generation,
		Failed:     s.HasFailures(),
		CreatedAt:  now,
		Results:    make([]Result, 0, len(s.Models)),
	}
	for i, m := range s.Models {
		c.Results = append(c.Results, Result{
			Position: i,
			Model:    m.String(),
			Text:     s.Results[m],
		})
	}
	return c
}
