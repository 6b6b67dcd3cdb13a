package classifier

import (
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"

	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

// DecodeImage decodes a JPEG or PNG image.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryImageDecode).
			Context("operation", "decode_image").
			Build()
	}
	GetLogger().Debug("decoded image",
		logger.String("format", format),
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()))
	return img, nil
}
