package vlm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidImage marks images the secondary model cannot accept.
var ErrInvalidImage = errors.New("invalid image")

// Image is a single encoded image passed to the secondary model.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// NewImage wraps raw bytes, sniffing the MIME type when mimeType is empty.
func NewImage(name, mimeType string, data []byte) Image {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" && len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}
	return Image{Name: name, MIMEType: mimeType, Data: data}
}

// LoadImage reads an image file from disk.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	img := NewImage(filepath.Base(path), "", data)
	if err := img.Validate(); err != nil {
		return Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Validate reports whether the image carries non-empty image data.
func (img Image) Validate() error {
	if len(img.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrInvalidImage)
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return fmt.Errorf("%w: unsupported content type %q", ErrInvalidImage, img.MIMEType)
	}
	return nil
}

// DataURI encodes the image as a base64 data URI.
func (img Image) DataURI() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
