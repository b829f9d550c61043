package adapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ErrPageLimitExceeded reports that the OCR service refused the document
// for exceeding its page budget. Extract handles it internally by
// retrying in imageless mode; it only escapes if that fallback fails too.
var ErrPageLimitExceeded = errors.New("ocr: page limit exceeded")

// TextExtractor turns document bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, mimeType string) (string, error)
}

// DocumentAI calls a Document AI style process endpoint. The processor
// URL carries project, location and processor ID.
type DocumentAI struct {
	httpClient   *http.Client
	processorURL string
	apiKey       string
}

func NewDocumentAI(processorURL, apiKey string) *DocumentAI {
	return &DocumentAI{
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		processorURL: strings.TrimRight(processorURL, "/"),
		apiKey:       apiKey,
	}
}

type docaiRequest struct {
	RawDocument    docaiRawDocument     `json:"rawDocument"`
	ProcessOptions *docaiProcessOptions `json:"processOptions,omitempty"`
}

type docaiRawDocument struct {
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
}

type docaiProcessOptions struct {
	OcrConfig docaiOcrConfig `json:"ocrConfig"`
}

type docaiOcrConfig struct {
	EnableNativePdfParsing bool `json:"enableNativePdfParsing"`
}

type docaiResponse struct {
	Document struct {
		Text string `json:"text"`
	} `json:"document"`
}

// Extract runs the document through the processor. When the service
// reports a page limit violation it retries once with native PDF
// parsing enabled, which trades image OCR for a higher page ceiling.
func (d *DocumentAI) Extract(ctx context.Context, content []byte, mimeType string) (string, error) {
	text, err := d.process(ctx, content, mimeType, false)
	if errors.Is(err, ErrPageLimitExceeded) {
		log.Printf("[ocr] page limit exceeded, retrying imageless")
		return d.process(ctx, content, mimeType, true)
	}
	return text, err
}

func (d *DocumentAI) process(ctx context.Context, content []byte, mimeType string, imageless bool) (string, error) {
	payload := docaiRequest{
		RawDocument: docaiRawDocument{
			Content:  base64.StdEncoding.EncodeToString(content),
			MimeType: mimeType,
		},
	}
	if imageless {
		payload.ProcessOptions = &docaiProcessOptions{
			OcrConfig: docaiOcrConfig{EnableNativePdfParsing: true},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.processorURL+":process", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("document ai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if strings.Contains(string(data), "PAGE_LIMIT_EXCEEDED") {
			return "", ErrPageLimitExceeded
		}
		return "", fmt.Errorf("document ai returned %d: %s", resp.StatusCode, data)
	}

	var decoded docaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode document ai response: %w", err)
	}
	return decoded.Document.Text, nil
}
