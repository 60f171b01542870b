package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/bodul/gearscan/internal/schematic"
)

const extractPrompt = `Transcribe this photo of an engine schematic.

The schematic is a rectangular grid of characters. Each cell holds a digit (0-9),
a period (.) for an empty cell, or a single symbol character such as * # + $ / = @ % & -.

Reply with JSON in exactly this format:
{
  "lines": ["467..114..", "...*......", ...]
}

Rules:
- One string per grid row, top to bottom.
- Every string has the same length: one character per cell, left to right.
- Never insert spaces; an empty cell is a period.
- Reply ONLY with the JSON, no commentary or markdown.`

type extraction struct {
	Lines []string `json:"lines"`
}

// ExtractSchematic sends a photo to Gemini and returns the transcribed grid.
func (g *GeminiClient) ExtractSchematic(ctx context.Context, imageData []byte, mimeType string) (*schematic.Grid, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractPrompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.1)),
			TopP:             genai.Ptr(float32(1)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty gemini response")
	}
	return decodeExtraction(text)
}

// decodeExtraction turns the model's JSON reply into a grid.
func decodeExtraction(text string) (*schematic.Grid, error) {
	var ex extraction
	if err := json.Unmarshal([]byte(text), &ex); err != nil {
		return nil, fmt.Errorf("parse schematic JSON: %w\nraw response: %s", err, text)
	}
	for i, line := range ex.Lines {
		ex.Lines[i] = strings.TrimSpace(line)
	}
	return schematic.New(ex.Lines)
}
