package classifier

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
)

// ImageNet channel statistics used by torchvision-style ResNet exports.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// layout describes how pixel data is ordered in an input tensor.
type layout int

const (
	layoutNHWC layout = iota // TFLite
	layoutNCHW               // ONNX
)

// normalization selects how 8-bit channel values map to floats.
type normalization int

const (
	normMobileNet normalization = iota // [-1, 1]
	normImageNet                       // (x/255 - mean) / std
	normUnit                           // [0, 1]
)

// centerCropSquare crops the largest centered square from img.
func centerCropSquare(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h {
		return img
	}

	side := min(w, h)
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	rect := image.Rect(x0, y0, x0+side, y0+side)

	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// prepareImage center-crops and resizes img to width x height.
func prepareImage(img image.Image, width, height int) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	cropped := centerCropSquare(img)
	return resize.Resize(uint(width), uint(height), cropped, resize.Lanczos3), nil
}

// imageToFloat32 converts img (already sized) into a tensor buffer.
func imageToFloat32(img image.Image, l layout, n normalization) []float32 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	plane := width * height
	out := make([]float32, 3*plane)

	for y := range height {
		for x := range width {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			px := [3]float32{
				float32(r>>8) / 255.0,
				float32(g>>8) / 255.0,
				float32(bl>>8) / 255.0,
			}
			idx := y*width + x
			for c := range 3 {
				v := normalize(px[c], c, n)
				if l == layoutNCHW {
					out[c*plane+idx] = v
				} else {
					out[idx*3+c] = v
				}
			}
		}
	}
	return out
}

// imageToUint8 converts img into an NHWC byte buffer for quantized models.
func imageToUint8(img image.Image) []uint8 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	out := make([]uint8, 3*width*height)

	for y := range height {
		for x := range width {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			idx := (y*width + x) * 3
			out[idx] = uint8(r >> 8)
			out[idx+1] = uint8(g >> 8)
			out[idx+2] = uint8(bl >> 8)
		}
	}
	return out
}

func normalize(v float32, channel int, n normalization) float32 {
	switch n {
	case normMobileNet:
		return v*2 - 1
	case normImageNet:
		return (v - imagenetMean[channel]) / imagenetStd[channel]
	default:
		return v
	}
}

// softmax converts logits to probabilities in place.
func softmax(scores []float32) {
	if len(scores) == 0 {
		return
	}
	maxScore := scores[0]
	for _, s := range scores[1:] {
		maxScore = max(maxScore, s)
	}

	var sum float64
	for i, s := range scores {
		e := math.Exp(float64(s - maxScore))
		scores[i] = float32(e)
		sum += e
	}
	for i := range scores {
		scores[i] = float32(float64(scores[i]) / sum)
	}
}

// isProbabilityVector reports whether scores already look like a softmax output.
func isProbabilityVector(scores []float32) bool {
	var sum float64
	for _, s := range scores {
		if s < 0 || s > 1 {
			return false
		}
		sum += float64(s)
	}
	return math.Abs(sum-1) < 1e-3
}
