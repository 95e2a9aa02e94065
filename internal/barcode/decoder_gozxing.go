//go:build !nobarcode

package barcode

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// zxingDecoder tries each one-dimensional format a book cover can carry.
type zxingDecoder struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

func newDefaultDecoder() Decoder {
	return &zxingDecoder{
		readers: []gozxing.Reader{
			oned.NewEAN13Reader(),
			oned.NewUPCAReader(),
			oned.NewEAN8Reader(),
			oned.NewCode128Reader(),
		},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (d *zxingDecoder) Decode(img image.Image) ([]string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	var candidates []string
	seen := make(map[string]bool)
	for _, reader := range d.readers {
		result, err := reader.Decode(bmp, d.hints)
		reader.Reset()
		if err != nil {
			// NotFound, Checksum and Format exceptions all mean this format is absent.
			continue
		}
		if text := result.GetText(); !seen[text] {
			seen[text] = true
			candidates = append(candidates, text)
		}
	}
	return candidates, nil
}
