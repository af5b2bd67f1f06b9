package frames

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// DataURLPrefix starts every encoded screenshot.
const DataURLPrefix = "data:image/jpeg;base64,"

const (
	DefaultMaxWidth = 640
	DefaultQuality  = 70
)

// Encode scales img down to at most maxWidth pixels wide, keeping its aspect
// ratio, and returns it as a JPEG data URL. Images already narrow enough are
// not resized.
func Encode(img image.Image, maxWidth, quality int) (string, error) {
	if img == nil {
		return "", errors.New("encode frame: nil image")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return "", errors.New("encode frame: empty image")
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	src := img
	if bounds.Dx() > maxWidth {
		height := int(math.Round(float64(bounds.Dy()) * float64(maxWidth) / float64(bounds.Dx())))
		if height < 1 {
			height = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode parses a data URL produced by Encode.
func Decode(dataURL string) (image.Image, error) {
	payload, ok := strings.CutPrefix(dataURL, DataURLPrefix)
	if !ok {
		return nil, errors.New("decode frame: not a jpeg data url")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}
