//go:build nobarcode

package barcode

// Binaries built with the nobarcode tag carry no decoder.
func newDefaultDecoder() Decoder {
	return nil
}
