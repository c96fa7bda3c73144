package verify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sajided/sparkEye/internal/types"
)

const (
	// DefaultModel matches the prototype's choice.
	DefaultModel = "gemini-2.5-flash"

	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	maxOutputTok   = 1024
)

// GeminiClient calls the Gemini generateContent REST API with the step
// instruction and an inline JPEG of the current view.
type GeminiClient struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGeminiClient creates a client for the given API key.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiClient{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: defaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents []struct {
		Parts []generatePart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Verify implements Verifier.
func (c *GeminiClient) Verify(ctx context.Context, req Request) (types.VerificationOutcome, error) {
	var none types.VerificationOutcome

	var payload generateRequest
	payload.Contents = make([]struct {
		Parts []generatePart `json:"parts"`
	}, 1)
	payload.Contents[0].Parts = []generatePart{
		{Text: buildPrompt(req.StepInstruction, req.ExpectedVisual)},
		{InlineData: &inlineData{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(req.ImageBytes),
		}},
	}
	payload.GenerationConfig.Temperature = 0.2
	payload.GenerationConfig.MaxOutputTokens = maxOutputTok

	body, err := json.Marshal(payload)
	if err != nil {
		return none, &TransportError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return none, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return none, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return none, fmt.Errorf("gemini API returned 429: %w", ErrQuotaExhausted)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return none, &TransportError{Err: fmt.Errorf("gemini API returned %d: %s", resp.StatusCode, truncate(string(b), 200))}
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return none, &MalformedResponseError{Raw: err.Error()}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return none, &NoResponseError{Detail: "no candidates"}
	}

	return ExtractOutcome(gr.Candidates[0].Content.Parts[0].Text)
}

// buildPrompt is the instructor prompt from the prototype, verbatim in intent.
func buildPrompt(instruction, expected string) string {
	return fmt.Sprintf(`You are an expert electronics instructor checking a student's circuit.

Current Step Instruction: %q
Expected Visual: %q

Analyze the provided image. Does the wiring match the instruction?
Ignore unrelated objects.

Respond with valid JSON ONLY:
{
  "status": "correct" | "partial" | "incorrect",
  "confidence": <float 0.0-1.0>,
  "feedback": "<short, clear guidance string>"
}`, instruction, expected)
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractOutcome defensively parses model text into an outcome. Models wrap
// JSON in markdown fences or prose often enough that strict decoding is the
// wrong default.
func ExtractOutcome(text string) (types.VerificationOutcome, error) {
	var none types.VerificationOutcome

	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	match := jsonObjectRe.FindString(cleaned)
	if match == "" {
		return none, &MalformedResponseError{Raw: truncate(text, 200)}
	}

	var out types.VerificationOutcome
	if err := json.Unmarshal([]byte(match), &out); err != nil {
		return none, &MalformedResponseError{Raw: truncate(text, 200)}
	}
	if !out.Status.Known() {
		return none, &MalformedResponseError{Raw: truncate(text, 200)}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
