package ocr

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Image is a decoded upload
type Image struct {
	Data     []byte
	MimeType string
}

// Base64 re-encodes the image payload
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURI returns the image as a data URI
func (i Image) DataURI() string {
	return "data:" + i.MimeType + ";base64," + i.Base64()
}

// DecodeImage strips an optional data-URI prefix (everything up to and
// including "base64,") and decodes the payload. The mime type is sniffed
// from the bytes; anything that is not recognizably an image or PDF is
// labelled image/jpeg.
func DecodeImage(encoded string) (Image, error) {
	if idx := strings.Index(encoded, "base64,"); idx >= 0 {
		encoded = encoded[idx+len("base64,"):]
	}
	encoded = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, encoded)
	if encoded == "" {
		return Image{}, errEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return Image{}, errInvalidBase64
		}
	}
	if len(data) == 0 {
		return Image{}, errEmptyImage
	}

	mime := http.DetectContentType(data)
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	if !strings.HasPrefix(mime, "image/") && mime != "application/pdf" {
		mime = "image/jpeg"
	}
	return Image{Data: data, MimeType: mime}, nil
}
