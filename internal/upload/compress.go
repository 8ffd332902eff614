package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/debemdeboas/newsroom/internal/config"
)

const minJPEGQuality = 40

var ErrUnsupportedFormat = errors.New("unsupported image format")

// CompressionError reports an image that could not be decoded or encoded.
type CompressionError struct {
	Name string
	Err  error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("compressing %s: %v", e.Name, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

// Compressor bounds the dimensions and the byte size of uploaded images.
type Compressor struct {
	MaxWidth     int
	MaxHeight    int
	Quality      float64
	SoftMaxBytes int64
}

func NewCompressor(cfg config.UploadConfig) *Compressor {
	return &Compressor{
		MaxWidth:     cfg.MaxWidth,
		MaxHeight:    cfg.MaxHeight,
		Quality:      cfg.Quality,
		SoftMaxBytes: cfg.SoftMaxBytes,
	}
}

type Compressed struct {
	Data          []byte
	ContentType   string
	Ext           string
	Width         int
	Height        int
	OriginalBytes int
	Resized       bool
}

// fit scales w x h down to fit inside maxW x maxH, keeping the aspect ratio.
func fit(w, h, maxW, maxH int) (int, int) {
	if (maxW <= 0 || w <= maxW) && (maxH <= 0 || h <= maxH) {
		return w, h
	}
	ratio := 1.0
	if maxW > 0 {
		ratio = math.Min(ratio, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		ratio = math.Min(ratio, float64(maxH)/float64(h))
	}
	return max(1, int(math.Round(float64(w)*ratio))), max(1, int(math.Round(float64(h)*ratio)))
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// Compress decodes a JPEG, PNG, GIF or WebP image, scales it into the
// configured box and re-encodes it. Opaque images become JPEG, stepping the
// quality down until the soft size limit is met; images with transparency
// stay PNG.
func (c *Compressor) Compress(name string, data []byte) (*Compressed, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			err = ErrUnsupportedFormat
		}
		return nil, &CompressionError{Name: name, Err: err}
	}

	isOpaque := opaque(img)
	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), c.MaxWidth, c.MaxHeight)
	out := &Compressed{Width: w, Height: h, OriginalBytes: len(data)}
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
		out.Resized = true
	}

	var buf bytes.Buffer
	if isOpaque {
		quality := int(math.Round(c.Quality * 100))
		quality = min(max(quality, minJPEGQuality), 100)
		for {
			buf.Reset()
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
				return nil, &CompressionError{Name: name, Err: err}
			}
			if c.SoftMaxBytes <= 0 || int64(buf.Len()) <= c.SoftMaxBytes || quality <= minJPEGQuality {
				break
			}
			quality = max(quality-10, minJPEGQuality)
		}
		out.ContentType, out.Ext = "image/jpeg", "jpg"
	} else {
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, &CompressionError{Name: name, Err: err}
		}
		out.ContentType, out.Ext = "image/png", "png"
	}
	out.Data = buf.Bytes()

	// Re-encoding a small JPEG can grow it; keep the original then.
	if !out.Resized && format == "jpeg" && out.Ext == "jpg" && len(data) <= len(out.Data) {
		out.Data = bytes.Clone(data)
	}

	uploadLogger.Debug().
		Str("name", name).
		Str("format", format).
		Int("original_bytes", len(data)).
		Int("bytes", len(out.Data)).
		Int("width", w).
		Int("height", h).
		Msg("Compressed image")
	return out, nil
}
