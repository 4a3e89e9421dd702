package datahandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/geodata-registry/api"
	"github.com/ruteri/geodata-registry/geodata"
)

// MaxUploadSize bounds the multipart upload body.
const MaxUploadSize = 64 << 20

// DataService is the part of geodata.Service the handler needs.
type DataService interface {
	Upload(ctx context.Context, name string, r io.Reader) (*geodata.UploadResult, error)
	Encrypt(ctx context.Context, file string, useRSA bool) (*geodata.EncryptResult, error)
	Files() ([]geodata.FileInfo, error)
}

type Handler struct {
	svc DataService
	log *slog.Logger
}

func NewHandler(svc DataService, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/data", func(r chi.Router) {
		r.Post("/upload", h.HandleUpload)
		r.Post("/encrypt", h.HandleEncrypt)
		r.Get("/files", h.HandleFiles)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, geodata.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, geodata.ErrUnsupportedFileType),
		errors.Is(err, geodata.ErrInvalidContent),
		errors.Is(err, geodata.ErrRSAUnavailable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("data operation failed", "op", op, "err", err)
	}
	http.Error(w, fmt.Sprintf("error %s: %v", op, err), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// HandleUpload stores a geospatial dataset.
//
// URL format: POST /api/data/upload, multipart form field "file".
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Errorf("no file part: %w", err).Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := h.svc.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.writeError(w, "processing file", err)
		return
	}
	writeJSON(w, res)
}

// HandleEncrypt encrypts a workspace file.
//
// URL format: POST /api/data/encrypt
// Body: api.EncryptRequest
func (h *Handler) HandleEncrypt(w http.ResponseWriter, r *http.Request) {
	var req api.EncryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}
	if req.File == "" {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Encrypt(r.Context(), req.File, req.UseRSA)
	if err != nil {
		h.writeError(w, "encrypting data", err)
		return
	}
	writeJSON(w, res)
}

// HandleFiles lists the workspace.
//
// URL format: GET /api/data/files
func (h *Handler) HandleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Files()
	if err != nil {
		h.writeError(w, "listing files", err)
		return
	}
	writeJSON(w, api.FilesResponse{Files: files})
}
