// Package vision identifies the material of a photographed item. The ledger
// only ever sees the resulting types.MaterialResult.
package vision

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/types"
)

// Image is an uploaded photo
type Image struct {
	Data     []byte
	MIMEType string
}

// Classifier identifies the material shown in an image
type Classifier interface {
	Classify(ctx context.Context, img Image) (*types.MaterialResult, error)
	Name() string
}

var supportedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// NewImage builds an Image, sniffing the content type when none is given
// or when the client sent a generic one
func NewImage(data []byte, mimeType string) Image {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return Image{Data: data, MIMEType: mimeType}
}

// Validate checks that the image can be sent to a provider
func (img Image) Validate() error {
	if len(img.Data) == 0 {
		return apperrors.NewValidationError("image", "image is empty")
	}
	if !supportedMIMETypes[img.MIMEType] {
		return apperrors.NewValidationError("image", "unsupported image type "+img.MIMEType)
	}
	return nil
}

// format returns the subtype of the MIME type, e.g. "jpeg"
func (img Image) format() string {
	return strings.TrimPrefix(img.MIMEType, "image/")
}
