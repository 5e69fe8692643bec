package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/zxcv8096-dotcom/line-tool/auth"
	"github.com/zxcv8096-dotcom/line-tool/engine"
	"github.com/zxcv8096-dotcom/line-tool/fault"
)

// Webhook receives channel events. The channel retries on non-2xx, so a
// failure in one event never fails the batch: per-event errors are logged
// and the delivery is acknowledged.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	// Signature check happens before anything mutates.
	if !auth.VerifySignature(body, r.Header.Get("X-Line-Signature"), h.Secret) {
		h.Log.Infow("webhook signature rejected", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "bad signature")
		return
	}

	var payload engine.WebhookBody
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	for _, ev := range payload.Events {
		if err := h.Engine.HandleEvent(r.Context(), ev); err != nil {
			// Rejections the channel caused (expired token etc.) stay at
			// info; real faults at error.
			if fault.IsClientError(err) {
				h.Log.Infow("event dropped", "type", ev.Type, "userId", ev.Source.UserID, "error", err)
			} else {
				h.Log.Errorw("event handling failed", "type", ev.Type, "userId", ev.Source.UserID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
