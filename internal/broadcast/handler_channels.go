package broadcast

import (
	"fmt"
	"net/http"
)

type channelResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Channel Channel `json:"channel"`
}

// ListChannels handles GET /api/channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.svc.Channels.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, channels)
}

// GetChannel handles GET /api/channels/{id}.
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ch, err := h.svc.Channels.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ch)
}

// UpdateChannel handles PUT /api/channels/{id} with {name, isActive, currentMedia}.
func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var u ChannelUpdate
	if err := h.decode(r, &u); err != nil {
		h.writeError(w, r, err)
		return
	}
	ch, err := h.svc.Channels.Update(r.Context(), id, u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ch)
}

// StartChannel handles POST /api/channels/{id}/start with {mediaId}.
func (h *Handler) StartChannel(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body struct {
		MediaID string `json:"mediaId"`
	}
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	ch, err := h.svc.Channels.Start(r.Context(), id, body.MediaID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, channelResult{
		Success: true,
		Message: fmt.Sprintf("Channel %d is now streaming media %s", id, body.MediaID),
		Channel: ch,
	})
}

// StopChannel handles POST /api/channels/{id}/stop.
func (h *Handler) StopChannel(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ch, err := h.svc.Channels.Stop(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, channelResult{
		Success: true,
		Message: fmt.Sprintf("Channel %d has stopped streaming", id),
		Channel: ch,
	})
}
