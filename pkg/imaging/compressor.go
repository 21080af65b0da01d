// Package imaging bounds photographed answer pages to the size and
// dimension budget the evaluation endpoints accept.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
)

const (
	// MaxDimension is the longest side allowed after downscaling.
	MaxDimension = 2048
	// MaxEncodedBytes is the raw JPEG budget (~4.1 MB once base64-encoded).
	MaxEncodedBytes = 3 * 1024 * 1024

	startQuality = 85
	floorQuality = 30
	qualityStep  = 10

	// MaxPages caps how many photographed pages one answer may carry.
	MaxPages = 10
)

// ErrNotAnImage is returned when the input bytes are not a raster image.
var ErrNotAnImage = errors.New("input is not an image")

// ErrTooManyPages is returned when a page set exceeds MaxPages.
var ErrTooManyPages = fmt.Errorf("at most %d pages per answer", MaxPages)

// Compressed is a transmission-ready page.
type Compressed struct {
	Base64   string
	MimeType string
	Width    int
	Height   int
	Quality  int
}

// Compress decodes a captured or uploaded photo, scales it to fit within
// MaxDimension preserving aspect ratio, and re-encodes it as JPEG, lowering
// quality until the result fits the byte budget or the floor is reached.
// The transform is pure; the input bytes are not modified.
func Compress(data []byte) (Compressed, error) {
	if !mimetype.Detect(data).Is("image/jpeg") && !mimetype.Detect(data).Is("image/png") {
		return Compressed{}, ErrNotAnImage
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Compressed{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > MaxDimension || height > MaxDimension {
		ratio := min(float64(MaxDimension)/float64(width), float64(MaxDimension)/float64(height))
		width = int(float64(width)*ratio + 0.5)
		height = int(float64(height)*ratio + 0.5)

		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)
		src = scaled
	}

	quality := startQuality
	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
			return Compressed{}, fmt.Errorf("encode jpeg: %w", err)
		}
		if buf.Len() <= MaxEncodedBytes {
			break
		}
		next, ok := lowerQuality(quality)
		if !ok {
			break
		}
		quality = next
	}

	return Compressed{
		Base64:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType: "image/jpeg",
		Width:    width,
		Height:   height,
		Quality:  quality,
	}, nil
}

// lowerQuality steps the JPEG quality down one notch, clamping the last
// step so the floor itself is still attempted.
func lowerQuality(quality int) (int, bool) {
	if quality <= floorQuality {
		return quality, false
	}
	quality -= qualityStep
	if quality < floorQuality {
		quality = floorQuality
	}
	return quality, true
}

// PageSet accumulates the ordered pages of one photographed answer.
type PageSet struct {
	pages []Compressed
}

// Add compresses data and appends it as the next page.
func (p *PageSet) Add(data []byte) error {
	if len(p.pages) >= MaxPages {
		return ErrTooManyPages
	}
	c, err := Compress(data)
	if err != nil {
		return err
	}
	p.pages = append(p.pages, c)
	return nil
}

// Pages returns the accumulated pages in upload order.
func (p *PageSet) Pages() []Compressed {
	return p.pages
}

// Len reports how many pages have been accumulated.
func (p *PageSet) Len() int { return len(p.pages) }
