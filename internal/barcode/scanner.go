// Package barcode extracts an ISBN from a photographed book barcode.
package barcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrInvalidImage          = errors.New("invalid image data")
	ErrNoISBN                = errors.New("no valid ISBN barcode found")
	ErrCapabilityUnavailable = errors.New("barcode scanning is not available")
)

// Decoder returns the raw text of every barcode it can read in img, best candidate first.
type Decoder interface {
	Decode(img image.Image) ([]string, error)
}

type Scanner struct {
	decoder Decoder
	log     *zap.Logger
}

// NewScanner returns a scanner using the built-in decoder. With enabled
// false, or in a binary built with the nobarcode tag, every scan returns
// ErrCapabilityUnavailable.
func NewScanner(enabled bool, log *zap.Logger) *Scanner {
	var decoder Decoder
	if enabled {
		decoder = newDefaultDecoder()
	}
	return NewScannerWithDecoder(decoder, log)
}

// NewScannerWithDecoder returns a scanner over decoder. A nil decoder disables scanning.
func NewScannerWithDecoder(decoder Decoder, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{decoder: decoder, log: log.Named("barcode")}
}

// Available reports whether scans can succeed at all.
func (s *Scanner) Available() bool {
	return s.decoder != nil
}

// ScanISBN decodes a base64 image, optionally wrapped in a data URL, and
// returns the first barcode that normalizes to an ISBN.
func (s *Scanner) ScanISBN(payload string) (string, error) {
	if s.decoder == nil {
		return "", ErrCapabilityUnavailable
	}

	raw, err := decodePayload(payload)
	if err != nil {
		return "", err
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	bounds := img.Bounds()
	s.log.Debug("image decoded",
		zap.String("format", format),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()))

	candidates, err := s.decoder.Decode(img)
	if err != nil {
		return "", err
	}

	for _, candidate := range candidates {
		if isbn, ok := NormalizeISBN(candidate); ok {
			return isbn, nil
		}
		s.log.Debug("rejected barcode candidate", zap.String("candidate", candidate))
	}
	return "", ErrNoISBN
}

// decodePayload strips a "data:<mime>;base64," prefix and base64-decodes the rest.
func decodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if _, encoded, found := strings.Cut(payload, ";base64,"); found {
		payload = encoded
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return raw, nil
}

// NormalizeISBN removes hyphens and accepts the result when it is 10 or 13 digits.
func NormalizeISBN(candidate string) (string, bool) {
	isbn := strings.ReplaceAll(candidate, "-", "")
	if len(isbn) != 10 && len(isbn) != 13 {
		return "", false
	}
	for _, r := range isbn {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return isbn, true
}
