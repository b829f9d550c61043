package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ijtihad-backend/adapter"
	"ijtihad-backend/model"
	"ijtihad-backend/store"
)

const notFoundMarker = "Tidak Ditemukan"

// Executor runs one submitted task through its stages and always leaves
// a terminal record in the task store. It has no return channel to the
// submitter: the store is the only output, and the scratch file named in
// the work item is removed no matter how the stages went.
type Executor struct {
	OCR      adapter.TextExtractor
	LLM      adapter.Generator
	Registry adapter.RegistrySearcher
	Store    store.TaskStore

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewExecutor(ocr adapter.TextExtractor, llm adapter.Generator, registry adapter.RegistrySearcher, taskStore store.TaskStore) *Executor {
	return &Executor{
		OCR:      ocr,
		LLM:      llm,
		Registry: registry,
		Store:    taskStore,
		Now:      time.Now,
	}
}

// Execute dispatches a work item by task type.
func (e *Executor) Execute(ctx context.Context, item model.WorkItem) {
	switch item.Type {
	case model.TaskHalalScan:
		e.ExecuteHalalScan(ctx, item)
	case model.TaskContractAnalysis:
		e.ExecuteContractAnalysis(ctx, item)
	default:
		log.Printf("[executor] task %s has unknown type %q", item.TaskID, item.Type)
		e.persist(ctx, item.TaskID, map[string]any{
			"status":          model.StatusFailed,
			"summary_message": "Jenis tugas tidak dikenal.",
			"timestamp":       e.Now().UTC(),
		})
		e.removeScratch(item.TaskID, item.InputPath)
	}
}

// ExecuteHalalScan runs the halal certification pipeline:
// extract text → identify product → search registry → summarize verdict.
// The deferred block is the PERSIST stage; it runs on every path,
// including panics in earlier stages, so the task can never end without
// a terminal record or leave its scratch file behind.
func (e *Executor) ExecuteHalalScan(ctx context.Context, item model.WorkItem) {
	result := model.HalalScanResult{
		Status:         model.StatusFailed,
		ProductName:    "N/A",
		SummaryMessage: "Terjadi kesalahan saat memproses permintaan.",
		Timestamp:      e.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[executor] task %s panicked: %v", item.TaskID, r)
		}
		e.persist(ctx, item.TaskID, result)
		e.removeScratch(item.TaskID, item.InputPath)
	}()

	var productName, producerName string

	switch {
	case item.InputPath != "":
		text, err := e.extractText(ctx, item)
		if err != nil || strings.TrimSpace(text) == "" {
			log.Printf("[executor] task %s: text extraction failed: %v", item.TaskID, err)
			result.SummaryMessage = "Gagal mengekstrak teks dari dokumen."
			return
		}
		productName, producerName, err = e.identifyProduct(ctx, text)
		if err != nil {
			log.Printf("[executor] task %s: product identification failed: %v", item.TaskID, err)
			result.SummaryMessage = "Nama produk tidak dapat diidentifikasi."
			return
		}
	case item.InputText != "":
		// Text submissions carry the product name directly.
		productName = item.InputText
	default:
		result.SummaryMessage = "Input tidak valid. Diperlukan teks atau file."
		return
	}

	if productName == "" || strings.Contains(productName, notFoundMarker) {
		result.SummaryMessage = "Nama produk tidak dapat diidentifikasi."
		return
	}
	result.ProductName = productName

	records, err := e.Registry.Search(ctx, productName, producerName)
	if err != nil {
		// The registry is best effort; an unreachable registry means an
		// empty enrichment, not a failed task.
		log.Printf("[executor] task %s: registry search failed: %v", item.TaskID, err)
		records = nil
	}

	e.summarizeHalalStatus(ctx, productName, records, &result)
	result.Status = model.StatusCompleted
}

// ExecuteContractAnalysis runs the gharar/maysir pipeline:
// extract text → detect indicators → score → persist.
func (e *Executor) ExecuteContractAnalysis(ctx context.Context, item model.WorkItem) {
	result := model.ContractAnalysisResult{
		Status:     model.StatusFailed,
		Score:      0,
		Indicators: []model.ScanIndicator{},
		Summary:    "Terjadi kesalahan saat memulai analisis.",
		Timestamp:  e.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[executor] task %s panicked: %v", item.TaskID, r)
		}
		e.persist(ctx, item.TaskID, result)
		e.removeScratch(item.TaskID, item.InputPath)
	}()

	var contractText string
	switch {
	case item.InputText != "":
		contractText = item.InputText
	case item.InputPath != "":
		text, err := e.extractText(ctx, item)
		if err != nil || strings.TrimSpace(text) == "" {
			log.Printf("[executor] task %s: text extraction failed: %v", item.TaskID, err)
			result.Summary = "Gagal mengekstrak teks dari dokumen yang diunggah."
			return
		}
		contractText = text
	default:
		result.Summary = "Input tidak valid. Diperlukan teks atau file dengan tipe MIME."
		return
	}

	indicators, summary := e.analyzeContract(ctx, contractText)

	result.Status = model.StatusCompleted
	result.Score = clarityScore(indicators)
	result.Indicators = indicators
	result.Summary = summary
}

func (e *Executor) extractText(ctx context.Context, item model.WorkItem) (string, error) {
	content, err := os.ReadFile(item.InputPath)
	if err != nil {
		return "", fmt.Errorf("read scratch file: %w", err)
	}
	mimeType := item.MimeType
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	return e.OCR.Extract(ctx, content, mimeType)
}

type productInfo struct {
	ProductName string `json:"nama_produk"`
	Producer    string `json:"nama_pelaku_usaha"`
}

// identifyProduct asks the LLM for the product and producer names as
// JSON. The model is told to answer with "Tidak Ditemukan" for missing
// fields; non-JSON output is an identification failure.
func (e *Executor) identifyProduct(ctx context.Context, text string) (string, string, error) {
	prompt := fmt.Sprintf(`Analisis teks berikut dan identifikasi "nama_produk" dan "nama_pelaku_usaha".
Balas HANYA dalam format JSON. Contoh: {"nama_produk": "Teh Pucuk Harum", "nama_pelaku_usaha": "PT Mayora Indah Tbk"}.
Jika salah satu informasi tidak dapat ditemukan, gunakan nilai "Tidak Ditemukan".

Teks untuk dianalisis:
---
%s
---`, text)

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", "", err
	}

	var info productInfo
	if err := json.Unmarshal([]byte(adapter.CleanModelJSON(response)), &info); err != nil {
		return "", "", fmt.Errorf("parse product info: %w", err)
	}
	return info.ProductName, info.Producer, nil
}

type halalVerdict struct {
	Status               string `json:"status"`
	ValidatedProductName string `json:"validated_product_name"`
	CertificateNumber    string `json:"certificate_number"`
	Producer             string `json:"producer"`
	SummaryMessage       string `json:"summary_message"`
}

// summarizeHalalStatus asks the LLM for a verdict over the registry
// records. Empty records are fine: the verdict degrades to
// needs-further-verification. Non-JSON output likewise.
func (e *Executor) summarizeHalalStatus(ctx context.Context, productName string, records []model.CertificateRecord, result *model.HalalScanResult) {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		recordsJSON = []byte("[]")
	}

	prompt := fmt.Sprintf(`Analisis status sertifikasi halal untuk produk: %s
Data hasil pencarian BPJPH: %s
Balas HANYA dalam format JSON dengan field: "status" ("HALAL_TERSERTIFIKASI" atau "%s"), "validated_product_name", "certificate_number", "producer", "summary_message".
Jika data pencarian kosong atau tidak cocok, gunakan status "%s".`,
		productName, recordsJSON, model.StatusNeedsVerification, model.StatusNeedsVerification)

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		// Only reachable with a non-retrying generator wired in.
		result.SummaryMessage = adapter.FallbackResponse
		return
	}

	var verdict halalVerdict
	if err := json.Unmarshal([]byte(adapter.CleanModelJSON(response)), &verdict); err != nil {
		result.Status = model.StatusNeedsVerification
		result.SummaryMessage = strings.TrimSpace(response)
		return
	}

	if verdict.ValidatedProductName != "" {
		result.ProductName = verdict.ValidatedProductName
	}
	result.CertificateNumber = verdict.CertificateNumber
	result.Producer = verdict.Producer
	result.SummaryMessage = verdict.SummaryMessage
}

type contractFindings struct {
	Indicators []model.ScanIndicator `json:"indicators"`
	Summary    string                `json:"summary"`
}

// analyzeContract asks the LLM for gharar/maysir indicators. A response
// that cannot be parsed degrades to zero indicators with a fixed
// summary; the task still completes.
func (e *Executor) analyzeContract(ctx context.Context, contractText string) ([]model.ScanIndicator, string) {
	prompt := fmt.Sprintf(`Anda adalah seorang ahli hukum kontrak syariah. Analisis teks kontrak berikut untuk mengidentifikasi klausul yang mengandung unsur GHARAR (ketidakpastian) atau MAYSIR (spekulasi/judi).

Berikan hasil analisis dalam format JSON dengan struktur:
{
  "indicators": [
    { "type": "gharar", "phrase": "kutipan klausul yang bermasalah", "reason": "alasan syariah singkat kenapa ini gharar" },
    { "type": "maysir", "phrase": "kutipan klausul yang bermasalah", "reason": "alasan syariah singkat kenapa ini maysir" }
  ],
  "summary": "Ringkasan umum mengenai tingkat kepatuhan syariah dari kontrak ini."
}

Jika tidak ada indikasi, kembalikan array "indicators" yang kosong.

Teks Kontrak:
%s`, contractText)

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return []model.ScanIndicator{}, "Analisis AI gagal menghasilkan format yang benar."
	}

	var findings contractFindings
	if err := json.Unmarshal([]byte(adapter.CleanModelJSON(response)), &findings); err != nil {
		return []model.ScanIndicator{}, "Analisis AI gagal menghasilkan format yang benar."
	}
	if findings.Indicators == nil {
		findings.Indicators = []model.ScanIndicator{}
	}
	if findings.Summary == "" {
		findings.Summary = "Ringkasan tidak tersedia."
	}
	return findings.Indicators, findings.Summary
}

// clarityScore starts from 100 and deducts per indicator: 10 for
// gharar, 20 for maysir, floored at zero.
func clarityScore(indicators []model.ScanIndicator) int {
	score := 100
	for _, indicator := range indicators {
		switch indicator.Type {
		case model.IndicatorGharar:
			score -= 10
		case model.IndicatorMaysir:
			score -= 20
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// persist writes the terminal record. A store failure is logged and
// swallowed: the task stays without a record and the poller keeps
// reporting it as processing. Scratch cleanup still happens.
func (e *Executor) persist(ctx context.Context, taskID string, result any) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("[executor] task %s: marshal result: %v", taskID, err)
		return
	}
	// The per-task deadline must not take the terminal write down with it.
	ctx = context.WithoutCancel(ctx)
	if err := e.Store.Put(ctx, taskID, payload); err != nil {
		log.Printf("[executor] task %s: store result: %v", taskID, err)
	}
}

func (e *Executor) removeScratch(taskID, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[executor] task %s: remove scratch file %s: %v", taskID, path, err)
	}
}
