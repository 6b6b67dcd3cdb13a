package classifier

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier/internal/errors"
)

func TestDecodeImage_PNG(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestDecodeImage_Invalid(t *testing.T) {
	t.Parallel()

	_, err := DecodeImage(strings.NewReader("not an image"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageDecode))
}

func TestStateHasFailures(t *testing.T) {
	t.Parallel()

	ok := State{Results: map[ModelType]string{MobileNetV2: "tabby (58%)"}}
	assert.False(t, ok.HasFailures())

	failed := State{Results: map[ModelType]string{
		MobileNetV2: "tabby (58%)",
		ResNet50:    FailureMessage(errors.NewStd("boom")),
	}}
	assert.True(t, failed.HasFailures())
	assert.True(t, IsFailure("Classification failed: boom"))
}
