package model

import "time"

// Task types carried on the queue.
const (
	TaskHalalScan        = "halal_scan"
	TaskContractAnalysis = "contract_analysis"
)

// Terminal statuses written by the pipeline executor. A task with no
// stored record is implicitly "processing".
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"

	// StatusNeedsVerification is the halal-scan verdict when the
	// registry search came back empty or the summarizer could not
	// produce a definitive answer.
	StatusNeedsVerification = "MEMERLUKAN_VERIFIKASI_LANJUTAN"
)

// WorkItem is the message enqueued at submission time and consumed by a
// worker. Exactly one of InputPath/InputText is set.
type WorkItem struct {
	TaskID    string `json:"task_id"`
	Type      string `json:"type"`
	InputPath string `json:"input_path,omitempty"`
	InputText string `json:"input_text,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
}

// HalalScanResult is the terminal record for a halal certification scan.
type HalalScanResult struct {
	Status            string    `json:"status"`
	ProductName       string    `json:"product_name"`
	CertificateNumber string    `json:"certificate_number,omitempty"`
	Producer          string    `json:"producer,omitempty"`
	SummaryMessage    string    `json:"summary_message"`
	Timestamp         time.Time `json:"timestamp"`
}

// Indicator types for contract analysis.
const (
	IndicatorGharar = "gharar"
	IndicatorMaysir = "maysir"
)

// ScanIndicator maps a detected contract clause to its syariah
// classification. Duplicates are allowed; ordering carries no meaning.
type ScanIndicator struct {
	Type   string `json:"type"`
	Phrase string `json:"phrase"`
	Reason string `json:"reason"`
}

// ContractAnalysisResult is the terminal record for a gharar/maysir
// contract analysis. Score is always within [0,100].
type ContractAnalysisResult struct {
	Status     string          `json:"status"`
	Score      int             `json:"score"`
	Indicators []ScanIndicator `json:"indicators"`
	Summary    string          `json:"summary"`
	Timestamp  time.Time       `json:"timestamp"`
}

// CertificateRecord is one row scraped from the halal certificate
// registry search results.
type CertificateRecord struct {
	ProductName       string `json:"nama_produk"`
	Producer          string `json:"produsen"`
	CertificateNumber string `json:"nomor_sertifikat"`
	IssueDate         string `json:"tanggal_terbit"`
}
