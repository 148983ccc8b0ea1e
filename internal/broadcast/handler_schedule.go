package broadcast

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ListSchedule handles GET /api/schedule.
func (h *Handler) ListSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Schedule.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// CreateSchedule handles POST /api/schedule with {channelId, mediaId,
// startTime, endTime}. channelId may be a number or a numeric string;
// timestamps are RFC 3339 or zone-less local times.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChannelID flexInt `json:"channelId"`
		MediaID   string  `json:"mediaId"`
		StartTime string  `json:"startTime"`
		EndTime   *string `json:"endTime"`
	}
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	loc := h.svc.Schedule.Location()
	req := ScheduleRequest{ChannelID: int(body.ChannelID), MediaID: body.MediaID}
	if strings.TrimSpace(body.StartTime) != "" {
		t, err := ParseTime(body.StartTime, loc)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		req.StartTime = t
	}
	if body.EndTime != nil && strings.TrimSpace(*body.EndTime) != "" {
		t, err := ParseTime(*body.EndTime, loc)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		req.EndTime = &t
	}

	entry, err := h.svc.Schedule.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

// DeleteSchedule handles DELETE /api/schedule/{id}.
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Schedule.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ChannelSchedule handles GET /api/schedule/channel/{channelId}.
func (h *Handler) ChannelSchedule(w http.ResponseWriter, r *http.Request) {
	channelID, err := intParam(r, "channelId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.svc.Schedule.ListByChannel(r.Context(), channelID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// UpcomingSchedule handles GET /api/schedule/upcoming.
func (h *Handler) UpcomingSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Schedule.ListUpcoming(r.Context(), h.svc.Schedule.Now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// ScheduleTimeline handles GET /api/schedule/timeline?view=today|tomorrow|week.
func (h *Handler) ScheduleTimeline(w http.ResponseWriter, r *http.Request) {
	view, err := ParseView(r.URL.Query().Get("view"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tl, err := h.svc.Schedule.Timeline(r.Context(), view, h.svc.Schedule.Now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tl)
}
