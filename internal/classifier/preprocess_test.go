package classifier

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestCenterCropSquare(t *testing.T) {
	t.Parallel()

	wide := solidImage(40, 20, color.RGBA{A: 255})
	cropped := centerCropSquare(wide)
	assert.Equal(t, image.Rect(10, 0, 30, 20), cropped.Bounds())

	square := solidImage(16, 16, color.RGBA{A: 255})
	assert.Same(t, square, centerCropSquare(square))
}

func TestPrepareImage(t *testing.T) {
	t.Parallel()

	out, err := prepareImage(solidImage(300, 200, color.RGBA{R: 255, A: 255}), 224, 224)
	require.NoError(t, err)
	assert.Equal(t, 224, out.Bounds().Dx())
	assert.Equal(t, 224, out.Bounds().Dy())

	_, err = prepareImage(nil, 224, 224)
	require.Error(t, err)
	_, err = prepareImage(image.NewRGBA(image.Rect(0, 0, 0, 0)), 224, 224)
	require.Error(t, err)
	_, err = prepareImage(solidImage(4, 4, color.RGBA{}), 0, 224)
	require.Error(t, err)
}

func TestImageToFloat32Layouts(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 0, G: 255, B: 0, A: 255})

	nhwc := imageToFloat32(img, layoutNHWC, normUnit)
	assert.Equal(t, []float32{1, 0, 0, 0, 1, 0}, nhwc)

	nchw := imageToFloat32(img, layoutNCHW, normUnit)
	assert.Equal(t, []float32{1, 0, 0, 1, 0, 0}, nchw)

	mobilenet := imageToFloat32(img, layoutNHWC, normMobileNet)
	assert.InDelta(t, 1.0, mobilenet[0], 1e-6)
	assert.InDelta(t, -1.0, mobilenet[1], 1e-6)

	imagenet := imageToFloat32(img, layoutNCHW, normImageNet)
	assert.InDelta(t, (1-0.485)/0.229, imagenet[0], 1e-5)
	assert.InDelta(t, (0-0.485)/0.229, imagenet[1], 1e-5)
}

func TestImageToUint8(t *testing.T) {
	t.Parallel()

	img := solidImage(1, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	assert.Equal(t, []uint8{10, 20, 30, 10, 20, 30}, imageToUint8(img))
}

func TestSoftmax(t *testing.T) {
	t.Parallel()

	scores := []float32{1, 2, 3}
	softmax(scores)

	var sum float64
	for _, s := range scores {
		sum += float64(s)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Greater(t, scores[2], scores[1])
	assert.InDelta(t, math.Exp(3)/(math.Exp(1)+math.Exp(2)+math.Exp(3)), scores[2], 1e-6)
	assert.True(t, isProbabilityVector(scores))

	softmax(nil)
}

func TestIsProbabilityVector(t *testing.T) {
	t.Parallel()

	assert.True(t, isProbabilityVector([]float32{0.25, 0.75}))
	assert.False(t, isProbabilityVector([]float32{2.5, -1}))
	assert.False(t, isProbabilityVector([]float32{0.2, 0.2}))
}
