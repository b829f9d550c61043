package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// FallbackResponse is returned by RetryingLLM once every attempt has
// failed. It is a user-facing string, never an error: callers downstream
// of the retry loop must not observe a fault from the LLM stage.
const FallbackResponse = "Maaf, terjadi kesalahan saat memproses permintaan Anda. Silakan coba lagi nanti."

// Generator produces text from a prompt. Output is untrusted: even when
// asked for JSON the model may return prose, so callers parse
// defensively (see CleanModelJSON).
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gemini calls the Gemini generateContent REST endpoint.
type Gemini struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewGemini(baseURL, apiKey, model string) *Gemini {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, data)
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// RetryingLLM wraps a Generator with bounded exponential backoff. After
// the last attempt fails it degrades to FallbackResponse instead of
// propagating the error.
type RetryingLLM struct {
	inner    Generator
	attempts int
	baseWait time.Duration
	sleep    func(time.Duration)
}

func NewRetryingLLM(inner Generator) *RetryingLLM {
	return &RetryingLLM{
		inner:    inner,
		attempts: 3,
		baseWait: time.Second,
		sleep:    time.Sleep,
	}
}

func (r *RetryingLLM) Generate(ctx context.Context, prompt string) (string, error) {
	wait := r.baseWait
	for attempt := 1; attempt <= r.attempts; attempt++ {
		text, err := r.inner.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		log.Printf("[llm] attempt %d/%d failed: %v", attempt, r.attempts, err)
		if attempt < r.attempts {
			r.sleep(wait)
			wait *= 2
		}
	}
	return FallbackResponse, nil
}

// CleanModelJSON strips the markdown code fences models tend to wrap
// around JSON output.
func CleanModelJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
