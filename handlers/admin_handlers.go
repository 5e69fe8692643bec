package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/zxcv8096-dotcom/line-tool/fault"
)

const listAllLimit = 1000

// ListAll returns every stored key, sorted, for the back-office browser.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	keys, err := h.KV.List(r.Context(), "", listAllLimit)
	if err != nil {
		h.Log.Errorw("list keys failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": keys})
}

type keyPayloadRequest struct {
	Keyword string          `json:"keyword"`
	Payload json.RawMessage `json:"payload"`
}

// PutAny writes a raw value under a raw key. The admin pages use it for
// survey definitions (survey:def:<name>) and anything else they manage.
func (h *Handler) PutAny(w http.ResponseWriter, r *http.Request) {
	var req keyPayloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	key := strings.TrimSpace(req.Keyword)
	if key == "" {
		writeError(w, http.StatusBadRequest, "keyword must not be empty")
		return
	}
	if len(req.Payload) == 0 || string(req.Payload) == "null" {
		writeError(w, http.StatusBadRequest, "payload must not be empty")
		return
	}
	if err := h.KV.Put(r.Context(), key, string(req.Payload), 0); err != nil {
		h.Log.Errorw("put failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "put failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) LoadAny(w http.ResponseWriter, r *http.Request) {
	var req keyPayloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	key := strings.TrimSpace(req.Keyword)
	if key == "" {
		writeError(w, http.StatusBadRequest, "keyword must not be empty")
		return
	}
	stored, err := h.KV.Get(r.Context(), key)
	if errors.Is(err, fault.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no data")
		return
	}
	if err != nil {
		h.Log.Errorw("load failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}
	// Stored values are usually JSON; fall back to the raw string if not.
	var payload any
	if err := json.Unmarshal([]byte(stored), &payload); err != nil {
		payload = stored
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "payload": payload})
}

func (h *Handler) DeleteAny(w http.ResponseWriter, r *http.Request) {
	var req keyPayloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	key := strings.TrimSpace(req.Keyword)
	if key == "" {
		writeError(w, http.StatusBadRequest, "keyword must not be empty")
		return
	}
	if err := h.KV.Delete(r.Context(), key); err != nil {
		h.Log.Errorw("delete failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) KwMapGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.Keywords.Get(r.Context())
	if err != nil {
		h.Log.Errorw("keyword map read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "payload": m})
}

type kwMapRequest struct {
	Payload map[string]string `json:"payload"`
}

func (h *Handler) KwMapPut(w http.ResponseWriter, r *http.Request) {
	var req kwMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Payload == nil {
		writeError(w, http.StatusBadRequest, "payload must be an object")
		return
	}
	if err := h.Keywords.Put(r.Context(), req.Payload); err != nil {
		h.Log.Errorw("keyword map write failed", "error", err)
		writeError(w, http.StatusInternalServerError, "write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type surveyDeleteRequest struct {
	SurveyName string `json:"surveyName"`
}

// SurveyDelete removes a definition and prunes its keyword bindings so a
// stale keyword can't trigger a vanished survey.
func (h *Handler) SurveyDelete(w http.ResponseWriter, r *http.Request) {
	var req surveyDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	name := strings.TrimSpace(req.SurveyName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "surveyName must not be empty")
		return
	}
	if err := h.Keywords.Prune(r.Context(), name); err != nil {
		h.Log.Errorw("keyword prune failed", "survey", name, "error", err)
		writeError(w, http.StatusInternalServerError, "prune failed")
		return
	}
	if err := h.Surveys.Delete(r.Context(), name); err != nil {
		h.Log.Errorw("survey delete failed", "survey", name, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": time.Now().UnixMilli()})
}
