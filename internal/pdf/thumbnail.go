package pdf

import (
	"context"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// DefaultThumbnailScale matches the page preview size of the page grid.
const DefaultThumbnailScale = 0.3

// Thumbnail renders page at scale and shrinks it to at most maxWidth pixels
// wide. maxWidth <= 0 keeps the rendered size.
func Thumbnail(ctx context.Context, r Renderer, path string, page int, scale float64, maxWidth int) (image.Image, error) {
	if scale <= 0 {
		scale = DefaultThumbnailScale
	}
	img, err := r.RenderPage(ctx, path, page, scale)
	if err != nil {
		return nil, err
	}
	return fitWidth(img, maxWidth), nil
}

func fitWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Thumbnails renders refs with at most workers concurrent renders. The result
// is index-aligned with refs. The first error cancels the remaining renders.
func Thumbnails(ctx context.Context, r Renderer, refs []PageRef, scale float64, maxWidth, workers int) ([]image.Image, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]image.Image, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ref := range refs {
		g.Go(func() error {
			img, err := Thumbnail(gctx, r, ref.Path, ref.Page, scale, maxWidth)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
