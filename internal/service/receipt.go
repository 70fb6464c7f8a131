package service

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// ReceiptService renders proof-of-purchase images
type ReceiptService struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewReceiptService creates a receipt renderer producing size×size PNGs
func NewReceiptService(size int) *ReceiptService {
	return &ReceiptService{
		size:  size,
		level: qrcode.Medium,
	}
}

// QRCode encodes a purchase token as a PNG
func (s *ReceiptService) QRCode(token string) ([]byte, error) {
	qrCode, err := qrcode.New(token, s.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	pngBytes, err := qrCode.PNG(s.size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}

	return pngBytes, nil
}
