package classifier

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Prediction is one ranked label produced by a classifier.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// FormatResult renders a prediction as "<label> (<percent>%)".
func FormatResult(p Prediction) string {
	return fmt.Sprintf("%s (%d%%)", p.Label, percent(p.Confidence))
}

// percent converts a [0,1] confidence to a rounded whole percentage.
func percent(confidence float32) int {
	return int(math.Round(float64(confidence) * 100))
}

const failurePrefix = "Classification failed: "

// FailureMessage renders a per-model failure.
func FailureMessage(err error) string {
	return failurePrefix + fmt.Sprint(err)
}

// IsFailure reports whether a result text is a rendered failure.
func IsFailure(text string) bool {
	return strings.HasPrefix(text, failurePrefix)
}

// HasFailures reports whether any model of the state failed.
func (s State) HasFailures() bool {
	for _, text := range s.Results {
		if IsFailure(text) {
			return true
		}
	}
	return false
}

// sortPredictions sorts predictions by confidence in descending order.
func sortPredictions(preds []Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Confidence > preds[j].Confidence
	})
}

// pairLabelsAndConfidence pairs labels with their corresponding scores.
func pairLabelsAndConfidence(labels []string, scores []float32) ([]Prediction, error) {
	if len(labels) != len(scores) {
		return nil, fmt.Errorf("mismatched labels and predictions lengths: %d vs %d", len(labels), len(scores))
	}

	preds := make([]Prediction, len(labels))
	for i, label := range labels {
		preds[i] = Prediction{Label: label, Confidence: scores[i]}
	}
	return preds, nil
}

// rankPredictions pairs, sorts and trims to the topN highest scores.
func rankPredictions(labels []string, scores []float32, topN int) ([]Prediction, error) {
	preds, err := pairLabelsAndConfidence(labels, scores)
	if err != nil {
		return nil, err
	}
	sortPredictions(preds)
	if topN > 0 && len(preds) > topN {
		preds = preds[:topN]
	}
	return preds, nil
}

// Bias notice shown alongside results.
const (
	BiasNoticeTitle = "AI Bias Warning"
	BiasNotice      = "AI models can have biases based on their training data. " +
		"Results should be interpreted with caution and not taken as absolute truth."
)

// RenderResults returns display lines for a state. In compare mode each line
// is "<model>: <result>" in declaration order; otherwise only the result of
// the single requested model is shown.
func RenderResults(state State, compare bool) []string {
	var lines []string
	for _, m := range AllModelTypes() {
		if !slices.Contains(state.Models, m) {
			continue
		}
		text, ok := state.Results[m]
		if !ok {
			continue
		}
		if compare {
			lines = append(lines, m.String()+": "+text)
		} else {
			lines = append(lines, text)
		}
	}
	return lines
}
