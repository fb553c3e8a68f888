package handler

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/bloodlink/internal/config"
	"github.com/bloodlink/internal/fileserver"
)

// FileHandler serves profile and message images from local disk.
type FileHandler struct {
	cfg     *config.Config
	fileSvc *fileserver.Service
}

func NewFileHandler(cfg *config.Config) *FileHandler {
	return &FileHandler{
		cfg:     cfg,
		fileSvc: fileserver.New(cfg.UploadDir, cfg.MaxUploadSize),
	}
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	h.fileSvc.Upload(w, r)
}

func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(chi.URLParam(r, "filename"))
	h.fileSvc.Serve(w, r, filename)
}
