// Package handlers exposes the HTTP surface: the channel webhook and the
// back-office admin API the management pages call.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/zxcv8096-dotcom/line-tool/engine"
	"github.com/zxcv8096-dotcom/line-tool/kv"
	"github.com/zxcv8096-dotcom/line-tool/store"
)

type Handler struct {
	KV       kv.Store
	Surveys  *store.SurveyStore
	Keywords *store.KeywordMapStore
	Engine   *engine.Engine
	Secret   string
	Log      *zap.SugaredLogger
}

func New(kvs kv.Store, surveys *store.SurveyStore, keywords *store.KeywordMapStore, eng *engine.Engine, channelSecret string, log *zap.SugaredLogger) *Handler {
	return &Handler{
		KV:       kvs,
		Surveys:  surveys,
		Keywords: keywords,
		Engine:   eng,
		Secret:   channelSecret,
		Log:      log,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
