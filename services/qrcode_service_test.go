// file: services/qrcode_service_test.go
package services

import (
	"errors"
	"testing"

	"github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionQRCode_EncodesJoinURL(t *testing.T) {
	var encoded string
	encoder := func(content string, level qrcode.RecoveryLevel, size int) ([]byte, error) {
		encoded = content
		return []byte("png"), nil
	}

	data, err := GenerateSessionQRCode("https://lift.example.com/", "s 1", 256, encoder)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "https://lift.example.com/judge?session=s+1", encoded)
}

func TestGenerateSessionQRCode_InvalidInput(t *testing.T) {
	_, err := GenerateSessionQRCode("", "s1", 0, nil)
	assert.EqualError(t, err, "invalid size: 0")

	_, err = GenerateSessionQRCode("", "", 128, nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestGenerateSessionQRCode_EncoderFails(t *testing.T) {
	failing := func(string, qrcode.RecoveryLevel, int) ([]byte, error) {
		return nil, errors.New("QR code generation failed")
	}
	data, err := GenerateSessionQRCode("", "s1", 128, failing)
	assert.Nil(t, data)
	assert.EqualError(t, err, "QR code generation failed")
}

func TestGenerateSessionQRCode_RealEncoder(t *testing.T) {
	data, err := GenerateSessionQRCode("http://localhost:8080", "s1", 128, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}
