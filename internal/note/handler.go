package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"mdnotes/internal/common"
	"mdnotes/internal/note/service"
	"mdnotes/middleware"
	"mdnotes/pkg/logger"
)

// multipart framing on top of the file itself
const multipartOverhead = 64 << 10

type NoteHandler struct {
	Service        *service.NoteService
	MaxUploadBytes int64
}

func NewNoteHandler(service *service.NoteService, maxUploadBytes int64) *NoteHandler {
	return &NoteHandler{Service: service, MaxUploadBytes: maxUploadBytes}
}

func (h *NoteHandler) UploadNote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename, data, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, r, "upload note", err)
		return
	}

	note, err := h.Service.UploadNote(r.Context(), filename, data)
	if err != nil {
		h.fail(w, r, "upload note", err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	notes, err := h.Service.ListNotes(r.Context())
	if err != nil {
		h.fail(w, r, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) ExportNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	notes, err := h.Service.ExportNotes(r.Context())
	if err != nil {
		h.fail(w, r, "export notes", err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := noteID(w, r)
	if !ok {
		return
	}

	note, err := h.Service.GetNote(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) GetNoteHTML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := noteID(w, r)
	if !ok {
		return
	}

	html, err := h.Service.GetNoteHTML(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get note html", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src https: http:; style-src 'unsafe-inline'")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write([]byte(html))
}

func (h *NoteHandler) GetNoteRaw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := noteID(w, r)
	if !ok {
		return
	}

	raw, err := h.Service.GetNoteRaw(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get note raw", err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write([]byte(raw))
}

func (h *NoteHandler) CheckNoteGrammar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	engine := r.URL.Query().Get("engine")
	if engine == "" {
		engine = service.EngineLocal
	}

	issues, err := h.Service.CheckNoteGrammar(r.Context(), id, engine)
	if err != nil {
		h.fail(w, r, "check note grammar", err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// CheckGrammarLive checks the plain-text request body with the local engine.
func (h *NoteHandler) CheckGrammarLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text, err := h.readText(w, r)
	if err != nil {
		h.fail(w, r, "live grammar check", err)
		return
	}

	issues, err := h.Service.CheckGrammarLocal(r.Context(), text)
	if err != nil {
		h.fail(w, r, "live grammar check", err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// CheckGrammarRemote checks an uploaded Markdown file with the remote engine.
func (h *NoteHandler) CheckGrammarRemote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, data, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, r, "remote grammar check", err)
		return
	}

	issues, err := h.Service.CheckGrammarRemote(r.Context(), data)
	if err != nil {
		h.fail(w, r, "remote grammar check", err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (h *NoteHandler) CorrectText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text, err := h.readText(w, r)
	if err != nil {
		h.fail(w, r, "correct text", err)
		return
	}

	correction, err := h.Service.CorrectText(r.Context(), text)
	if err != nil {
		h.fail(w, r, "correct text", err)
		return
	}
	writeJSON(w, http.StatusOK, correction)
}

// readUpload returns the name and bytes of the multipart "file" field. The
// name is empty when the client sent none.
func (h *NoteHandler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, common.ErrFileTooLarge
		}
		return "", nil, badRequest("expected a multipart form with a file field")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// a part sent with filename="" is parsed as a plain value
		if values := r.MultipartForm.Value["file"]; len(values) > 0 {
			if int64(len(values[0])) > h.MaxUploadBytes {
				return "", nil, common.ErrFileTooLarge
			}
			return "", []byte(values[0]), nil
		}
		return "", nil, badRequest("missing file field")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.MaxUploadBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > h.MaxUploadBytes {
		return "", nil, common.ErrFileTooLarge
	}
	return header.Filename, data, nil
}

func (h *NoteHandler) readText(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", common.ErrFileTooLarge
		}
		return "", fmt.Errorf("read body: %w", err)
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("%w: request body is not valid UTF-8", common.ErrDecode)
	}
	return string(body), nil
}

func noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Missing or invalid id parameter", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

type badRequest string

func (b badRequest) Error() string { return string(b) }

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case common.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrRemoteServiceUnavailable), errors.Is(err, common.ErrRemoteResponseMalformed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail writes the error response. Client errors carry their message; server
// errors are logged and answered with a generic message.
func (h *NoteHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		http.Error(w, err.Error(), status)
		return
	}

	logger.Sugar.Errorw("Handler: "+op+" failed",
		"request_id", middleware.RequestID(r.Context()),
		"status", status,
		"error", err,
	)
	msg := "Internal server error"
	if status == http.StatusBadGateway {
		msg = "Grammar service is unavailable, try again later"
	}
	http.Error(w, msg, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Handler: Failed to encode response: %v", err)
	}
}
