// Package frameenc prepares decoded frames for classifier requests.
package frameenc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	// DefaultMaxSide bounds the longest edge sent to a classifier.
	DefaultMaxSide = 960
	// DefaultQuality is the JPEG quality used for uploads.
	DefaultQuality = 85
)

// Options control downscaling and compression. Zero fields take the defaults.
type Options struct {
	MaxSide int
	Quality int
}

// Downscale returns img unchanged when it already fits within maxSide, and an
// aspect-preserving bilinear copy otherwise.
func Downscale(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	nw, nh := maxSide, maxSide
	if w >= h {
		nh = max(1, h*maxSide/w)
	} else {
		nw = max(1, w*maxSide/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// JPEG downscales and encodes img.
func JPEG(img image.Image, opts Options) ([]byte, error) {
	if img == nil {
		return nil, errors.New("frame encode: nil image")
	}
	if b := img.Bounds(); b.Empty() {
		return nil, errors.New("frame encode: empty image")
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Downscale(img, opts.MaxSide), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("frame encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64JPEG returns the standard base64 text of JPEG(img, opts).
func Base64JPEG(img image.Image, opts Options) (string, error) {
	data, err := JPEG(img, opts)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
