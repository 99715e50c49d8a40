package s3

import (
	"bytes"
	"image"
	"net/http"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/citylistings/listing-service/internal/listing/domain"
)

const (
	maxImageWidth  = 1200
	maxImageHeight = 800
	webpQuality    = 80
)

// reencodeImage normalizes an uploaded payload: sniff the real content type,
// decode, bound the dimensions, and re-encode as webp. Re-encoding strips
// metadata and anything hiding behind a spoofed extension.
func reencodeImage(data []byte) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	switch http.DetectContentType(data) {
	case "image/jpeg", "image/png", "image/gif":
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	case "image/webp":
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		return nil, domain.ErrUnsupportedImage
	}
	if err != nil {
		return nil, domain.ErrUnsupportedImage
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxImageWidth || bounds.Dy() > maxImageHeight {
		img = imaging.Fit(img, maxImageWidth, maxImageHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, &domain.StorageError{Op: "storage.encode_webp", Err: err}
	}
	return buf.Bytes(), nil
}
