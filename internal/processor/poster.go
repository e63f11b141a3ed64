package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG posters

	"github.com/disintegration/imaging"
	"github.com/genricoloni/moodflix/internal/domain"
	"go.uber.org/zap"
)

const _jpegQuality = 85

// DefaultPosterSize matches the card poster box of the results grid
var DefaultPosterSize = domain.PosterSize{Width: 300, Height: 450}

// PosterProcessor scales poster artwork to the card thumbnail size
type PosterProcessor struct {
	logger *zap.Logger
	size   domain.PosterSize
}

// NewPosterProcessor creates a processor producing thumbnails of the given size
func NewPosterProcessor(logger *zap.Logger, size domain.PosterSize) *PosterProcessor {
	return &PosterProcessor{
		logger: logger,
		size:   size,
	}
}

// Process decodes a poster, fills the thumbnail box (center crop) and re-encodes it as JPEG
func (p *PosterProcessor) Process(ctx context.Context, imageData []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	thumb := imaging.Fill(img, p.size.Width, p.size.Height, imaging.Center, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: _jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	p.logger.Debug("Poster resized",
		zap.Int("srcW", bounds.Dx()), zap.Int("srcH", bounds.Dy()),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
