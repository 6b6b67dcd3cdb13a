package classifier

import (
	"context"
	"image"
)

// Classifier runs one pretrained model over an image.
// Implementations must be safe for concurrent use; Classify returns the
// ranked predictions, highest confidence first.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) ([]Prediction, error)
	Close() error
}
