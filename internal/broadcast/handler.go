package broadcast

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// UploadConfig controls where and how much the upload endpoint accepts.
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// Handler exposes the playout API using go-chi.
type Handler struct {
	svc    *Service
	log    *slog.Logger
	upload UploadConfig
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger, upload UploadConfig) *Handler {
	if upload.MaxBytes <= 0 {
		upload.MaxBytes = 500 << 20
	}
	return &Handler{svc: svc, log: log, upload: upload}
}

// Routes registers the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/media", func(r chi.Router) {
		r.Get("/", h.ListMedia)
		r.Post("/upload", h.UploadMedia)
		r.Get("/{id}", h.GetMedia)
		r.Put("/{id}", h.UpdateMedia)
		r.Delete("/{id}", h.DeleteMedia)
	})
	r.Route("/api/channels", func(r chi.Router) {
		r.Get("/", h.ListChannels)
		r.Get("/{id}", h.GetChannel)
		r.Put("/{id}", h.UpdateChannel)
		r.Post("/{id}/start", h.StartChannel)
		r.Post("/{id}/stop", h.StopChannel)
	})
	r.Route("/api/schedule", func(r chi.Router) {
		r.Get("/", h.ListSchedule)
		r.Post("/", h.CreateSchedule)
		r.Get("/upcoming", h.UpcomingSchedule)
		r.Get("/timeline", h.ScheduleTimeline)
		r.Get("/channel/{channelId}", h.ChannelSchedule)
		r.Delete("/{id}", h.DeleteSchedule)
	})
}

// StreamFiles serves transcoder output from dir with HLS content types.
func StreamFiles(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch path.Ext(r.URL.Path) {
		case ".m3u8":
			w.Header().Set("Content-Type", playlistContentType)
		case ".ts":
			w.Header().Set("Content-Type", "video/mp2t")
		}
		fs.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		h.log.Error("encode response failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// writeError maps err onto a status and a {"error", "message"} body.
// Internal causes are logged, not returned.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	body := map[string]string{"error": Message(err)}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		body["message"] = "internal error"
	} else {
		h.log.Debug("request rejected", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		body["message"] = err.Error()
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return validationError("invalid request body: %v", err)
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationError("invalid %s %q", name, raw)
	}
	return n, nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return validationError("not an integer: %s", b)
	}
	*f = flexInt(n)
	return nil
}
