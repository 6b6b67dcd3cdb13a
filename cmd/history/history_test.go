package history

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier/internal/datastore"
)

func TestPrint(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, Print(&out, nil))
	assert.Equal(t, "No classifications recorded\n", out.String())

	created := time.Date(2025, 3, 1, 12, 30, 0, 0, time.Local)
	out.Reset()
	require.NoError(t, Print(&out, []datastore.Classification{{
		RequestID: "req-1",
		CreatedAt: created,
		Results: []datastore.Result{
			{Model: "MobileNetV2", Text: "tabby (58%)"},
			{Model: "ResNet50", Text: "tiger cat (41%)"},
		},
	}}))
	assert.Equal(t, "2025-03-01 12:30:00  req-1  MobileNetV2: tabby (58%); ResNet50: tiger cat (41%)\n", out.String())
}
