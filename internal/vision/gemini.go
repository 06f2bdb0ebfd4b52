package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/types"
)

const providerGemini = "gemini"

const classificationPrompt = `You are a recycling assistant. Identify the primary material of the item in the photo.
Respond with a single JSON object and nothing else:
{"material_type": string, "is_recyclable": boolean, "confidence": number between 0 and 1, "resin_code": integer 1-7 or null}
Use the resin identification code name for plastics (PET, HDPE, PVC, LDPE, PP, PS, OTHER).
For other materials use one of: Glass, Paper, Cardboard, Aluminum, Steel.
Treat resin codes 1, 2 and 5 as recyclable and 3, 4, 6 and 7 as not recyclable.`

// GeminiClassifier asks a Gemini multimodal model to identify the material
type GeminiClassifier struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGeminiClassifier creates a connected Gemini classifier
func NewGeminiClassifier(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	model := c.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0)

	return &GeminiClassifier{client: c, model: model, timeout: timeout}, nil
}

// Name returns the provider name
func (g *GeminiClassifier) Name() string {
	return providerGemini
}

// Close terminates the connection
func (g *GeminiClassifier) Close() {
	if g.client != nil {
		_ = g.client.Close()
	}
}

// Classify sends the image and prompt and parses the JSON answer
func (g *GeminiClassifier) Classify(ctx context.Context, img Image) (*types.MaterialResult, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData(img.format(), img.Data),
		genai.Text(classificationPrompt),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("material identification", err)
		}
		return nil, apperrors.NewProviderError(providerGemini, err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, apperrors.NewProviderError(providerGemini, fmt.Errorf("model returned no content"))
	}
	return parseClassification(text)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

type classification struct {
	MaterialType *string  `json:"material_type"`
	IsRecyclable *bool    `json:"is_recyclable"`
	Confidence   *float64 `json:"confidence"`
	ResinCode    *int     `json:"resin_code"`
}

// parseClassification decodes the model answer. Anything short of a
// complete, valid result is a provider error.
func parseClassification(text string) (*types.MaterialResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var c classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return nil, apperrors.NewProviderError(providerGemini, fmt.Errorf("malformed classification: %w", err))
	}
	if c.MaterialType == nil || c.IsRecyclable == nil || c.Confidence == nil {
		return nil, apperrors.NewProviderError(providerGemini, fmt.Errorf("incomplete classification: %s", text))
	}

	result := &types.MaterialResult{
		MaterialType: strings.TrimSpace(*c.MaterialType),
		IsRecyclable: *c.IsRecyclable,
		Confidence:   *c.Confidence,
		ResinCode:    c.ResinCode,
	}
	if err := result.Validate(); err != nil {
		return nil, apperrors.NewProviderError(providerGemini, err)
	}
	return result, nil
}
