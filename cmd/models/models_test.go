package models

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier/internal/classifier"
)

func TestList(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, List(&out, classifier.MobileNetV2))
	assert.Equal(t, "MobileNetV2 (default)\nResNet50\n", out.String())

	out.Reset()
	require.NoError(t, List(&out, classifier.ResNet50))
	assert.Equal(t, "MobileNetV2\nResNet50 (default)\n", out.String())
}
