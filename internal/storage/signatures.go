package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/disintegration/imaging"

	"collection-service/internal/entity"
)

const (
	signatureMaxWidth  = 600
	signatureMaxHeight = 240
)

// SignatureStore normalises captured signature images to bounded PNGs.
type SignatureStore struct {
	files FileStore
}

func NewSignatureStore(files FileStore) *SignatureStore {
	return &SignatureStore{files: files}
}

// SignaturePath is the object name for a job's signature of role.
func SignaturePath(jobCode string, role entity.SignatureRole) string {
	return fmt.Sprintf("signatures/%s/%s.png", jobCode, role)
}

// Put accepts a PNG or JPEG and returns the reference proofs carry.
func (s *SignatureStore) Put(ctx context.Context, jobCode string, role entity.SignatureRole, data []byte) (string, error) {
	if !role.Valid() {
		return "", entity.NewFieldError(entity.ErrValidation, "role", fmt.Sprintf("unknown signature role %q", role))
	}
	switch http.DetectContentType(data) {
	case "image/png", "image/jpeg":
	default:
		return "", entity.NewFieldError(entity.ErrValidation, "image", "signature must be a PNG or JPEG")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", entity.NewFieldError(entity.ErrValidation, "image", "signature image cannot be decoded")
	}
	b := img.Bounds()
	if b.Dx() > signatureMaxWidth || b.Dy() > signatureMaxHeight {
		img = imaging.Fit(img, signatureMaxWidth, signatureMaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode signature: %w", err)
	}

	ref := SignaturePath(jobCode, role)
	if err := s.files.Put(ctx, ref, buf.Bytes(), "image/png"); err != nil {
		return "", err
	}
	return ref, nil
}

// Get returns the stored PNG behind ref.
func (s *SignatureStore) Get(ctx context.Context, ref string) ([]byte, error) {
	return s.files.Get(ctx, ref)
}
