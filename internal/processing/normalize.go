package processing

import (
	"github.com/disintegration/imaging"

	"thumbpress/internal/services"
)

// normalizeImage decodes src, downscales it to fit within the configured
// bounds while preserving aspect ratio, and writes it as a JPEG to dst.
// Images already inside the bounds are re-encoded without resizing.
func (p *Pipeline) normalizeImage(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return services.Wrap(services.ErrArtifactIO, "processing", "normalize", "decode image", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > p.maxWidth || bounds.Dy() > p.maxHeight {
		img = imaging.Fit(img, p.maxWidth, p.maxHeight, imaging.Lanczos)
	}

	if err := imaging.Save(img, dst, imaging.JPEGQuality(p.jpegQuality)); err != nil {
		return services.Wrap(services.ErrArtifactIO, "processing", "normalize", "encode image", err)
	}
	return nil
}
