package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ijtihad-backend/model"

	"golang.org/x/net/html"
)

// RegistrySearcher queries the halal certificate registry. An empty
// result list is a valid outcome, not an error.
type RegistrySearcher interface {
	Search(ctx context.Context, productName, producer string) ([]model.CertificateRecord, error)
}

// BPJPH scrapes the public BPJPH certificate search page. One request
// per query parameter; results are merged and deduplicated by
// certificate number.
type BPJPH struct {
	httpClient *http.Client
	baseURL    string
}

func NewBPJPH(baseURL string) *BPJPH {
	return &BPJPH{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (b *BPJPH) Search(ctx context.Context, productName, producer string) ([]model.CertificateRecord, error) {
	combined := make(map[string]model.CertificateRecord)

	if productName != "" {
		if err := b.searchInto(ctx, "nama_produk", productName, combined); err != nil {
			return nil, err
		}
	}
	if producer != "" {
		if err := b.searchInto(ctx, "nama_pelaku_usaha", producer, combined); err != nil {
			return nil, err
		}
	}

	records := make([]model.CertificateRecord, 0, len(combined))
	for _, record := range combined {
		records = append(records, record)
	}
	return records, nil
}

func (b *BPJPH) searchInto(ctx context.Context, param, value string, combined map[string]model.CertificateRecord) error {
	searchURL := fmt.Sprintf("%s/search/sertifikat?%s=%s", b.baseURL, param, url.QueryEscape(value))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned %d for %s search", resp.StatusCode, param)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return fmt.Errorf("parse registry page: %w", err)
	}

	for _, record := range parseCertificateRows(doc) {
		if record.CertificateNumber != "" {
			combined[record.CertificateNumber] = record
		}
	}
	return nil
}

// parseCertificateRows walks the document for table body rows with at
// least four cells: product, producer, certificate number, issue date.
func parseCertificateRows(doc *html.Node) []model.CertificateRecord {
	var records []model.CertificateRecord

	var walk func(n *html.Node, inBody bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tbody":
				inBody = true
			case "tr":
				if inBody {
					cells := rowCells(n)
					if len(cells) >= 4 {
						records = append(records, model.CertificateRecord{
							ProductName:       cells[0],
							Producer:          cells[1],
							CertificateNumber: cells[2],
							IssueDate:         cells[3],
						})
					}
					return
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inBody)
		}
	}
	walk(doc, false)

	return records
}

func rowCells(tr *html.Node) []string {
	var cells []string
	for child := tr.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == "td" {
			cells = append(cells, strings.TrimSpace(nodeText(child)))
		}
	}
	return cells
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(nodeText(child))
	}
	return sb.String()
}
