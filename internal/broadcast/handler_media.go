package broadcast

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// videoTypes matches accepted upload extensions and MIME types.
var videoTypes = regexp.MustCompile(`mp4|avi|mkv|mov|wmv|flv|webm`)

// ListMedia handles GET /api/media.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Catalog.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// GetMedia handles GET /api/media/{id}.
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	asset, err := h.svc.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, asset)
}

// UploadMedia handles POST /api/media/upload, a multipart form with the
// video in "file" and optional title, description, year, genre and duration
// fields. The request blocks until transcoding completes.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, validationError("file exceeds %d bytes", h.upload.MaxBytes))
			return
		}
		h.writeError(w, r, validationError("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var duration *int
	if raw := strings.TrimSpace(r.FormValue("duration")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, validationError("invalid duration %q", raw))
			return
		}
		duration = &n
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, validationError("no file uploaded"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !videoTypes.MatchString(ext) && !videoTypes.MatchString(header.Header.Get("Content-Type")) {
		h.writeError(w, r, validationError("only video files are allowed"))
		return
	}

	fileName := uuid.NewString() + ext
	dst := filepath.Join(h.upload.Dir, fileName)
	if err := saveUpload(file, dst); err != nil {
		h.writeError(w, r, persistenceError("save upload", err))
		return
	}
	h.log.Info("upload received",
		slog.String("file", fileName),
		slog.String("original_name", header.Filename),
		slog.Int64("size", header.Size))

	asset, err := h.svc.Catalog.Ingest(r.Context(), IngestRequest{
		SourcePath:  dst,
		FileName:    fileName,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Year:        r.FormValue("year"),
		Genre:       r.FormValue("genre"),
		Duration:    duration,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, asset)
}

func saveUpload(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// UpdateMedia handles PUT /api/media/{id}.
func (h *Handler) UpdateMedia(w http.ResponseWriter, r *http.Request) {
	var u MediaUpdate
	if err := h.decode(r, &u); err != nil {
		h.writeError(w, r, err)
		return
	}
	asset, err := h.svc.Catalog.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, asset)
}

// DeleteMedia handles DELETE /api/media/{id}.
func (h *Handler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Catalog.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
