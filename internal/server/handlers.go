package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jcarver/docchat/internal/domain"
)

// maxUploadBytes caps a single document upload.
const maxUploadBytes = 50 << 20 // 50 MiB

// askRequest is the POST /chat/ask body.
type askRequest struct {
	Question string `json:"question"`
}

// askResponse mirrors the original chat API shape: the answer text plus the
// retrieved chunks with their similarity scores.
type askResponse struct {
	Answer         string          `json:"answer"`
	DocumentChunks []documentChunk `json:"documentChunks"`
}

// documentChunk is one supporting chunk. Confidence is the retrieval
// similarity score, not a calibrated probability.
type documentChunk struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// handleUpload accepts a multipart document upload, persists it under the
// media root, and runs the ingestion pipeline. Ingestion has no user-facing
// cancellation: once the upload is received it runs to completion or failure
// even if the client disconnects.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err), "")
		return
	}
	defer file.Close()

	sourceBytes, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err), "")
		return
	}

	storedPath, err := s.media.Save(header.Filename, sourceBytes)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err, "")
		return
	}

	doc := domain.Document{
		ID:           domain.NewDocumentID(storedPath),
		OriginalName: header.Filename,
		ByteSize:     int64(len(sourceBytes)),
		SourcePath:   storedPath,
		ReceivedAt:   time.Now().UTC(),
	}

	mimeHint := header.Header.Get("Content-Type")
	report, err := s.ingestor.Index(context.WithoutCancel(r.Context()), doc, sourceBytes, mimeHint)
	if err != nil {
		s.logger.Warn("ingestion failed",
			"document_id", doc.ID, "name", doc.OriginalName, "error", err)
		s.writeError(w, statusForError(err), err, string(domain.KindOf(err)))
		return
	}

	s.logger.Info("document ingested",
		"document_id", report.DocumentID, "name", doc.OriginalName, "chunks", report.ChunkCount)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "File %s uploaded successfully.", header.Filename)
}

// handleAsk answers a question from the indexed corpus.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), "")
		return
	}

	ans, err := s.answerer.Answer(r.Context(), req.Question)
	if err != nil {
		s.logger.Warn("answering failed", "error", err)
		s.writeError(w, statusForError(err), err, string(domain.KindOf(err)))
		return
	}

	chunks := make([]documentChunk, len(ans.SupportingChunks))
	for i, c := range ans.SupportingChunks {
		chunks[i] = documentChunk{Text: c.Text, Confidence: c.Score}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(askResponse{
		Answer:         ans.Text,
		DocumentChunks: chunks,
	})
}

// handleHealth checks vector index connectivity with a short timeout.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	if err := s.health.Health(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "unhealthy",
			"qdrant": "disconnected",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"qdrant": "connected",
	})
}

// statusForError maps the error taxonomy to transport status codes.
// Transient-exhausted collaborator failures read as service unavailable;
// input errors as bad request; misconfiguration as an internal fault.
func statusForError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidQuestion, domain.KindExtraction:
		return http.StatusBadRequest
	case domain.KindEmbedding, domain.KindIndex, domain.KindLanguageModel:
		return http.StatusServiceUnavailable
	case domain.KindConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Kind: kind})
}
