// Package qrcode renders tracking-number QR codes and stores them.
package qrcode

import (
	"context"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"

	"github.com/frahmantamala/courier-fulfillment/internal/storage"
)

const size = 300

type Generator interface {
	Generate(ctx context.Context, trackingNumber string) (string, error)
}

type StoredGenerator struct {
	uploader storage.Uploader
}

func NewGenerator(uploader storage.Uploader) *StoredGenerator {
	return &StoredGenerator{uploader: uploader}
}

// Generate uploads under a name derived from the tracking number only, so a
// retried webhook overwrites the same object instead of leaking a new one.
func (g *StoredGenerator) Generate(ctx context.Context, trackingNumber string) (string, error) {
	png, err := goqrcode.Encode(trackingNumber, goqrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("failed to render qr code: %w", err)
	}

	return g.uploader.Upload(ctx, png, storage.BucketQRCodes, trackingNumber+".png")
}
