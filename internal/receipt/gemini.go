package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/mmynk/spendtrack/internal/models"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini extracts receipt details with the Gemini API using a JSON response
// schema.
type Gemini struct {
	client *genai.Client
	model  string
}

// GeminiConfig configures NewGemini. BaseURL and HTTPClient are optional.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGemini creates a Gemini extractor.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Extract(ctx context.Context, imageDataURI string) (*Extraction, error) {
	mime, data, err := ParseDataURI(imageDataURI)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt()),
			genai.NewPartFromBytes(data, mime),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
		ResponseSchema:   extractionSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	out, err := decodeExtraction(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	slog.Debug("Receipt extracted", "backend", "gemini", "model", g.model, "vendor", out.Vendor)
	return out, nil
}

func extractionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"amount": {Type: genai.TypeString, Description: "Total amount paid"},
			"vendor": {Type: genai.TypeString, Description: "Store or merchant name"},
			"date":   {Type: genai.TypeString, Description: "Purchase date as YYYY-MM-DD"},
			"category": {
				Type: genai.TypeString,
				Enum: models.CategoryNames(),
			},
		},
		Required: []string{"amount", "vendor", "date", "category"},
	}
}

func decodeExtraction(text string) (*Extraction, error) {
	if text == "" {
		return nil, errors.New("empty response")
	}
	// Amounts sometimes come back as numbers despite the schema.
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &Extraction{
		Amount:   field(raw, "amount"),
		Vendor:   field(raw, "vendor"),
		Date:     field(raw, "date"),
		Category: field(raw, "category"),
	}, nil
}

func field(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	}
	return ""
}
