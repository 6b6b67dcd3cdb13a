package mqtt

import (
	"time"

	"github.com/tphakala/imageclassifier/internal/classifier"
)

// ResultDTO is the payload published for a completed classification request.
// Field names are part of the published message contract.
type ResultDTO struct {
	RequestID  string            `json:"requestId"`
	Generation uint64            `json:"generation"`
	Timestamp  string            `json:"timestamp"` // RFC3339
	Models     []string          `json:"models"`
	Results    map[string]string `json:"results"`
}

// NewResultDTO converts a dispatcher state into its published form.
func NewResultDTO(s classifier.State, now time.Time) ResultDTO {
	dto := ResultDTO{
		RequestID:  s.RequestID,
		Generation: s.Generation,
		Timestamp:  now.Format(time.RFC3339),
		Models:     make([]string, 0, len(s.Models)),
		Results:    make(map[string]string, len(s.Results)),
	}
	for _, m := range s.Models {
		dto.Models = append(dto.Models, m.String())
	}
	for m, text := range s.Results {
		dto.Results[m.String()] = text
	}
	return dto
}
