package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// Prompts longer than this are rejected before reaching the model.
const maxPromptChars = 4_000_000

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// askChatbot answers a question over the fatwa knowledge base: embed
// the question, rank chunks by cosine similarity, and have the LLM
// answer strictly from that context. The LLM handle is expected to be
// the retrying decorator, so this handler never sees a generation
// fault, only a degraded answer string.
func (s *Server) askChatbot(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "[API] Diperlukan field 'message'.", http.StatusBadRequest)
		return
	}

	vector, err := s.embedder.Embed(r.Context(), req.Message)
	if err != nil {
		log.Printf("[API] embed chatbot query: %v", err)
		http.Error(w, "[API] Layanan embedding tidak tersedia.", http.StatusInternalServerError)
		return
	}

	matches := s.collection.TopK(vector, 5)

	var contextText strings.Builder
	for i, match := range matches {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(match.Text)
	}

	prompt := fmt.Sprintf(`Anda adalah asisten AI yang ahli dalam hukum syariah berdasarkan fatwa MUI.
Jawablah pertanyaan berikut HANYA berdasarkan konteks fatwa yang saya berikan.
Jika informasi tidak ditemukan dalam konteks, katakan bahwa Anda tidak dapat menjawabnya.
Jangan mengarang jawaban.
Sertakan nomor fatwa atau bagian fatwa yang menjadi dasar jawaban Anda jika memungkinkan.

Pertanyaan Pengguna: %s

Konteks Fatwa:
%s

Jawaban:`, req.Message, contextText.String())

	if len(prompt) > maxPromptChars {
		writeJSON(w, http.StatusOK, chatResponse{
			Response: "Maaf, pertanyaan dan konteks yang diberikan terlalu panjang untuk diproses.",
		})
		return
	}

	answer, err := s.llm.Generate(r.Context(), prompt)
	if err != nil {
		log.Printf("[API] chatbot generation: %v", err)
		http.Error(w, "[API] Layanan AI tidak tersedia.", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: answer})
}
