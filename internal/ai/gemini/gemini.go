package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	Client     *genai.Client
	FlashModel *genai.GenerativeModel
	ProModel   *genai.GenerativeModel
}

func NewGenAIClient(apiKey, flashModelName, proModelName string) (*GeminiClient, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}

	return &GeminiClient{
		Client:     client,
		FlashModel: client.GenerativeModel(flashModelName),
		ProModel:   client.GenerativeModel(proModelName),
	}, nil
}

// SendDocument sends a prompt plus a document blob to the pro model and
// parses the JSON response. The models are instructed to answer with bare
// JSON but occasionally wrap it in markdown fences, so those are stripped.
func (g *GeminiClient) SendDocument(ctx context.Context, prompt string, data []byte, mimeType string) (map[string]any, error) {
	resp, err := g.ProModel.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{
			MIMEType: mimeType,
			Data:     data,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return parseJSONResponse(resp)
}

// SendText sends a text-only prompt to the flash model and parses the JSON
// response. Used for narrative generation where the cheaper model suffices.
func (g *GeminiClient) SendText(ctx context.Context, prompt string) (map[string]any, error) {
	resp, err := g.FlashModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return parseJSONResponse(resp)
}

func parseJSONResponse(resp *genai.GenerateContentResponse) (map[string]any, error) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no content returned from AI")
	}
	textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("response part is not text, received %T", resp.Candidates[0].Content.Parts[0])
	}
	aiResponse := string(textPart)
	if strings.HasPrefix(aiResponse, "```json") {
		aiResponse = strings.TrimPrefix(aiResponse, "```json\n")
		aiResponse = strings.TrimSuffix(aiResponse, "\n```")
	}
	aiResponse = strings.TrimSpace(aiResponse)

	var resultMap map[string]any
	if err := json.Unmarshal([]byte(aiResponse), &resultMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal AI response to JSON: %w. \nRaw response was: %s", err, aiResponse)
	}
	return resultMap, nil
}

// SendDocumentWithRetry attempts the request with automatic failover across
// multiple clients.
func SendDocumentWithRetry(ctx context.Context, prompt string, data []byte, mimeType string, selector *GeminiClientSelector) (map[string]any, error) {
	var result map[string]any

	err := selector.TryAllClients(func(client *GeminiClient, clientIdx int) error {
		resp, err := client.SendDocument(ctx, prompt, data, mimeType)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// SendTextWithRetry attempts a text-only request with automatic failover
// across multiple clients.
func SendTextWithRetry(ctx context.Context, prompt string, selector *GeminiClientSelector) (map[string]any, error) {
	var result map[string]any

	err := selector.TryAllClients(func(client *GeminiClient, clientIdx int) error {
		resp, err := client.SendText(ctx, prompt)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DetectMIMEType detects the MIME type of a document based on magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}

	// PDF: 25 50 44 46
	if data[0] == 0x25 && data[1] == 0x50 && data[2] == 0x44 && data[3] == 0x46 {
		return "application/pdf"
	}

	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}

	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}

	// WebP: 52 49 46 46 ... 57 45 42 50
	if data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 {
		if len(data) > 11 && data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
			return "image/webp"
		}
	}

	// Scanned claim documents are most commonly JPEG
	return "image/jpeg"
}
