package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"ijtihad-backend/model"
	"ijtihad-backend/search"
	"ijtihad-backend/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	items []model.WorkItem
	err   error
}

func (f *fakeQueue) Enqueue(ctx context.Context, item model.WorkItem) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, item)
	return nil
}

type fakeEmbedder struct {
	vector []float64
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return f.vector, f.err
}

type echoLLM struct{}

func (echoLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return "jawaban dari konteks", nil
}

func newTestServer(t *testing.T, q *fakeQueue, taskStore store.TaskStore) *Server {
	t.Helper()
	collection := search.NewCollection()
	collection.Add(search.Chunk{Text: "Fatwa tentang jual beli.", Vector: []float64{1, 0}})
	return &Server{
		queue:      q,
		store:      taskStore,
		uploadDir:  t.TempDir(),
		embedder:   &fakeEmbedder{vector: []float64{1, 0}},
		llm:        echoLLM{},
		collection: collection,
	}
}

func multipartFile(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func multipartText(t *testing.T, text string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("text", text))
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func uploadCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestSubmitRejectsUnsupportedExtension(t *testing.T) {
	q := &fakeQueue{}
	srv := newTestServer(t, q, store.NewMemory())

	body, contentType := multipartFile(t, "malware.exe", []byte("MZ"))
	req := httptest.NewRequest(http.MethodPost, "/halal-scan", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, q.items, "nothing enqueued for a rejected upload")
	assert.Zero(t, uploadCount(t, srv.uploadDir), "no scratch file for a rejected upload")
}

func TestSubmitFileAccepted(t *testing.T) {
	q := &fakeQueue{}
	srv := newTestServer(t, q, store.NewMemory())

	body, contentType := multipartFile(t, "label.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/halal-scan", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	srv.routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp submitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, model.StatusProcessing, resp.Status)

	require.Len(t, q.items, 1)
	item := q.items[0]
	assert.Equal(t, resp.TaskID, item.TaskID)
	assert.Equal(t, model.TaskHalalScan, item.Type)
	assert.Equal(t, "application/pdf", item.MimeType)
	assert.FileExists(t, item.InputPath)
}

func TestSubmitTextAccepted(t *testing.T) {
	q := &fakeQueue{}
	srv := newTestServer(t, q, store.NewMemory())

	body, contentType := multipartText(t, "Pasal 1: harga ditentukan kemudian.")
	req := httptest.NewRequest(http.MethodPost, "/contract-analysis", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	srv.routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, q.items, 1)
	assert.Equal(t, model.TaskContractAnalysis, q.items[0].Type)
	assert.Equal(t, "Pasal 1: harga ditentukan kemudian.", q.items[0].InputText)
	assert.Empty(t, q.items[0].InputPath)
	assert.Zero(t, uploadCount(t, srv.uploadDir))
}

func TestSubmitWithoutInputRejected(t *testing.T) {
	q := &fakeQueue{}
	srv := newTestServer(t, q, store.NewMemory())

	body, contentType := multipartText(t, "   ")
	req := httptest.NewRequest(http.MethodPost, "/halal-scan", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, q.items)
}

func TestSubmitEnqueueFailureRemovesScratchFile(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis unreachable")}
	srv := newTestServer(t, q, store.NewMemory())

	body, contentType := multipartFile(t, "contract.docx", []byte("PK"))
	req := httptest.NewRequest(http.MethodPost, "/contract-analysis", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, uploadCount(t, srv.uploadDir), "scratch file must be removed when enqueue fails")
}

func TestTaskStatusPolling(t *testing.T) {
	memory := store.NewMemory()
	srv := newTestServer(t, &fakeQueue{}, memory)

	t.Run("absent record reports processing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/halal-scan/unknown-id", nil)
		w := httptest.NewRecorder()
		srv.routes().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp statusResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, model.StatusProcessing, resp.Status)
		assert.Equal(t, json.RawMessage("null"), resp.Result)
	})

	t.Run("stored record reports completed", func(t *testing.T) {
		payload := json.RawMessage(`{"status":"failed","summary_message":"Gagal mengekstrak teks dari dokumen."}`)
		require.NoError(t, memory.Put(context.Background(), "done-id", payload))

		req := httptest.NewRequest(http.MethodGet, "/contract-analysis/done-id", nil)
		w := httptest.NewRecorder()
		srv.routes().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp statusResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, model.StatusCompleted, resp.Status)
		assert.JSONEq(t, string(payload), string(resp.Result))
	})
}

func TestChatbotAnswersFromContext(t *testing.T) {
	srv := newTestServer(t, &fakeQueue{}, store.NewMemory())

	req := httptest.NewRequest(http.MethodPost, "/chatbot",
		bytes.NewReader([]byte(`{"message":"Apa hukum jual beli gharar?"}`)))
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp chatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "jawaban dari konteks", resp.Response)
}

func TestChatbotRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(t, &fakeQueue{}, store.NewMemory())

	req := httptest.NewRequest(http.MethodPost, "/chatbot", bytes.NewReader([]byte(`{"message":""}`)))
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
