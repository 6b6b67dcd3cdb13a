package classifier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label      string
		confidence float32
		want       string
	}{
		{"cat", 0.97, "cat (97%)"},
		{"dog", 0.5, "dog (50%)"},
		{"fox", 0.0, "fox (0%)"},
		{"owl", 1.0, "owl (100%)"},
		{"eel", 0.574, "eel (57%)"},
		{"bee", 0.576, "bee (58%)"},
		{"golden retriever", 0.29, "golden retriever (29%)"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatResult(Prediction{Label: tt.label, Confidence: tt.confidence}))
		})
	}
}

func TestFailureMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Classification failed: no GPU", FailureMessage(fmt.Errorf("no GPU")))
}

func TestRankPredictions(t *testing.T) {
	t.Parallel()

	labels := []string{"a", "b", "c", "d"}
	preds, err := rankPredictions(labels, []float32{0.1, 0.4, 0.3, 0.2}, 2)
	require.NoError(t, err)
	assert.Equal(t, []Prediction{{"b", 0.4}, {"c", 0.3}}, preds)

	all, err := rankPredictions(labels, []float32{0.1, 0.4, 0.3, 0.2}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = rankPredictions(labels, []float32{0.1}, 2)
	require.Error(t, err)
}
