package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"ijtihad-backend/adapter"
	"ijtihad-backend/chat"
	"ijtihad-backend/model"
	"ijtihad-backend/search"
	"ijtihad-backend/store"

	"github.com/google/uuid"
)

// Enqueuer is the submission side of the task queue. Satisfied by
// *queue.Queue; tests substitute a fake.
type Enqueuer interface {
	Enqueue(ctx context.Context, item model.WorkItem) error
}

// Accepted upload extensions per task type, mapped to the MIME type
// handed to the OCR adapter.
var (
	halalScanMimeTypes = map[string]string{
		".pdf":  "application/pdf",
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
	}
	contractMimeTypes = map[string]string{
		".pdf":  "application/pdf",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
)

// Server wires the HTTP surface: task submission and polling, the RAG
// chatbot, and room chat persistence.
type Server struct {
	queue      Enqueuer
	store      store.TaskStore
	uploadDir  string
	embedder   adapter.Embedder
	llm        adapter.Generator
	collection *search.Collection
	chatStore  *chat.Store
}

type Config struct {
	Queue      Enqueuer
	Store      store.TaskStore
	UploadDir  string
	Embedder   adapter.Embedder
	LLM        adapter.Generator
	Collection *search.Collection
	ChatStore  *chat.Store
}

func NewServer(addr string, cfg Config) *http.Server {
	srv := &Server{
		queue:      cfg.Queue,
		store:      cfg.Store,
		uploadDir:  cfg.UploadDir,
		embedder:   cfg.Embedder,
		llm:        cfg.LLM,
		collection: cfg.Collection,
		chatStore:  cfg.ChatStore,
	}

	return &http.Server{
		Addr:    addr,
		Handler: srv.routes(),
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /halal-scan", s.submitHalalScan)
	mux.HandleFunc("GET /halal-scan/{task_id}", s.getTaskStatus)
	mux.HandleFunc("POST /contract-analysis", s.submitContractAnalysis)
	mux.HandleFunc("GET /contract-analysis/{task_id}", s.getTaskStatus)
	mux.HandleFunc("POST /chatbot", s.askChatbot)

	if s.chatStore != nil {
		mux.HandleFunc("POST /rooms", s.createRoom)
		mux.HandleFunc("GET /rooms", s.listRooms)
		mux.HandleFunc("POST /rooms/{room_id}/messages", s.createMessage)
		mux.HandleFunc("GET /rooms/{room_id}/messages", s.listMessages)
	}

	return mux
}

type submitResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

func (s *Server) submitHalalScan(w http.ResponseWriter, r *http.Request) {
	s.submitTask(w, r, model.TaskHalalScan, halalScanMimeTypes,
		"Permintaan pemindaian diterima. Status dapat dicek secara berkala.")
}

func (s *Server) submitContractAnalysis(w http.ResponseWriter, r *http.Request) {
	s.submitTask(w, r, model.TaskContractAnalysis, contractMimeTypes,
		"Dokumen diterima. Analisis sedang berjalan di background.")
}

// submitTask accepts either a multipart file or an inline text field,
// writes the upload to a scratch file named by the task ID, enqueues a
// work item and answers immediately. On enqueue failure the scratch
// file is removed before the error goes out, so a failed submission
// leaves nothing behind.
func (s *Server) submitTask(w http.ResponseWriter, r *http.Request, taskType string, mimeTypes map[string]string, acceptedMessage string) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "[API] Invalid multipart form", http.StatusBadRequest)
		return
	}

	item := model.WorkItem{
		TaskID: uuid.NewString(),
		Type:   taskType,
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		mimeType, ok := mimeTypes[ext]
		if !ok {
			http.Error(w, "[API] Tipe file tidak didukung.", http.StatusBadRequest)
			return
		}

		scratchPath, err := s.saveScratchFile(item.TaskID, ext, file)
		if err != nil {
			log.Printf("[API] save upload for task %s: %v", item.TaskID, err)
			http.Error(w, "[API] Gagal menyimpan file.", http.StatusInternalServerError)
			return
		}
		item.InputPath = scratchPath
		item.MimeType = mimeType

	case strings.TrimSpace(r.FormValue("text")) != "":
		item.InputText = strings.TrimSpace(r.FormValue("text"))

	default:
		http.Error(w, "[API] Diperlukan file atau field 'text'.", http.StatusBadRequest)
		return
	}

	if err := s.queue.Enqueue(r.Context(), item); err != nil {
		if item.InputPath != "" {
			if removeErr := os.Remove(item.InputPath); removeErr != nil {
				log.Printf("[API] remove scratch file after enqueue failure: %v", removeErr)
			}
		}
		log.Printf("[API] enqueue task %s: %v", item.TaskID, err)
		http.Error(w, "[API] Antrean tugas tidak tersedia.", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		TaskID:  item.TaskID,
		Status:  model.StatusProcessing,
		Message: acceptedMessage,
	})
}

func (s *Server) saveScratchFile(taskID, ext string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.uploadDir, taskID+ext)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// getTaskStatus reports completed when a terminal record exists and
// processing otherwise. An unknown task ID is indistinguishable from a
// task still in flight; that ambiguity is part of the contract.
func (s *Server) getTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	if taskID == "" {
		http.Error(w, "[API] Invalid task ID", http.StatusBadRequest)
		return
	}

	payload, found, err := s.store.Get(r.Context(), taskID)
	if err != nil {
		log.Printf("[API] read task %s: %v", taskID, err)
		http.Error(w, "[API] Store error", http.StatusInternalServerError)
		return
	}

	if !found {
		writeJSON(w, http.StatusOK, statusResponse{Status: model.StatusProcessing})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: model.StatusCompleted, Result: payload})
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "[API] Diperlukan field 'name'.", http.StatusBadRequest)
		return
	}

	room, err := s.chatStore.CreateRoom(r.Context(), req.Name)
	if err != nil {
		log.Printf("[API] create room: %v", err)
		http.Error(w, "[API] Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.chatStore.ListRooms(r.Context())
	if err != nil {
		log.Printf("[API] list rooms: %v", err)
		http.Error(w, "[API] Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	var req struct {
		Sender  string `json:"sender"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Sender == "" || req.Content == "" {
		http.Error(w, "[API] Diperlukan field 'sender' dan 'content'.", http.StatusBadRequest)
		return
	}

	message, err := s.chatStore.CreateMessage(r.Context(), roomID, req.Sender, req.Content)
	if errors.Is(err, chat.ErrRoomNotFound) {
		http.Error(w, "[API] Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[API] create message: %v", err)
		http.Error(w, "[API] Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	messages, err := s.chatStore.ListMessages(r.Context(), roomID)
	if errors.Is(err, chat.ErrRoomNotFound) {
		http.Error(w, "[API] Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[API] list messages: %v", err)
		http.Error(w, "[API] Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}
