package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptService_QRCode(t *testing.T) {
	svc := NewReceiptService(256)

	png, err := svc.QRCode("6f1c2c1e-8a77-4f4e-9b8a-0d1c7e0f2a11")
	require.NoError(t, err)
	require.NotEmpty(t, png)

	// Verify it's a valid PNG (starts with PNG magic number)
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, png[:4])
}

func TestReceiptService_QRCode_DifferentTokens(t *testing.T) {
	svc := NewReceiptService(128)

	first, err := svc.QRCode("token-a")
	require.NoError(t, err)
	second, err := svc.QRCode("token-b")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
