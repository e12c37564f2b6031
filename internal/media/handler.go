package media

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"photofolio/internal/security"
)

const maxUploadBytes = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/avif": true,
}

type ImageUploader interface {
	UploadImage(ctx context.Context, imageSource string) (string, error)
}

type UploadHandler struct {
	uploader ImageUploader
}

func NewUploadHandler(uploader ImageUploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

// Upload accepts a multipart image file and forwards it to the uploader as a
// data URI.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		security.WriteResponse(w, security.TypeServerError, "image uploader is not configured", nil)
		return
	}

	imageSource, problem := readUploadedImage(r)
	if problem != "" {
		security.WriteResponse(w, security.TypeValidationError, problem, nil)
		return
	}

	hostedURL, err := h.uploader.UploadImage(r.Context(), imageSource)
	if err != nil {
		sentry.CaptureException(err)
		security.WriteResponse(w, security.TypeServerError, "failed to upload image", nil)
		return
	}

	security.WriteResponse(w, security.TypeSuccess, "", map[string]string{"image_url": hostedURL})
}

// readUploadedImage validates the "file" form field and returns it encoded as
// a data URI, or a validation message for the client.
func readUploadedImage(r *http.Request) (string, string) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "invalid multipart form"
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "file is required"
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	switch {
	case err != nil:
		return "", "failed to read file"
	case len(data) == 0:
		return "", "file is empty"
	case len(data) > maxUploadBytes:
		return "", "file is too large"
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" {
		contentType = strings.ToLower(http.DetectContentType(data))
	}
	if mediaType, _, found := strings.Cut(contentType, ";"); found {
		contentType = strings.TrimSpace(mediaType)
	}
	if !allowedImageTypes[contentType] {
		return "", "file must be a jpeg, png, webp, gif, or avif image"
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), ""
}
