package gemini

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMIMEType(t *testing.T) {
	pdf := append([]byte("%PDF-1.7"), make([]byte, 16)...)
	assert.Equal(t, "application/pdf", DetectMIMEType(pdf))

	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 8)...)
	assert.Equal(t, "image/png", DetectMIMEType(png))

	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 8)...)
	assert.Equal(t, "image/jpeg", DetectMIMEType(jpeg))

	webp := append([]byte{0x52, 0x49, 0x46, 0x46, 0x00, 0x00, 0x00, 0x00, 0x57, 0x45, 0x42, 0x50}, make([]byte, 4)...)
	assert.Equal(t, "image/webp", DetectMIMEType(webp))

	assert.Equal(t, "application/octet-stream", DetectMIMEType([]byte{0x01}))
}

func TestClientSelector_RoundRobin(t *testing.T) {
	selector := NewGeminiClientSelector(make([]GeminiClient, 3))

	_, first := selector.GetNextClient()
	_, second := selector.GetNextClient()
	_, third := selector.GetNextClient()
	_, wrapped := selector.GetNextClient()

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 2, third)
	assert.Equal(t, 0, wrapped)
}

func TestClientSelector_TryAllClientsFailsOver(t *testing.T) {
	selector := NewGeminiClientSelector(make([]GeminiClient, 3))

	attempts := 0
	err := selector.TryAllClients(func(client *GeminiClient, clientIdx int) error {
		attempts++
		if attempts < 3 {
			return errors.New("quota exceeded")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestClientSelector_TryAllClientsExhausted(t *testing.T) {
	selector := NewGeminiClientSelector(make([]GeminiClient, 2))

	err := selector.TryAllClients(func(client *GeminiClient, clientIdx int) error {
		return errors.New("quota exceeded")
	})

	assert.Error(t, err)
}

func TestBuildExtractionPrompt_NamesClaimCategory(t *testing.T) {
	prompt := BuildExtractionPrompt("opd")
	assert.Contains(t, prompt, "opd")
	assert.Contains(t, prompt, "document_type")
	assert.Contains(t, prompt, "confidence")
}
