package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zxcv8096-dotcom/line-tool/engine"
	"github.com/zxcv8096-dotcom/line-tool/kv"
	"github.com/zxcv8096-dotcom/line-tool/line"
	"github.com/zxcv8096-dotcom/line-tool/store"
)

func newTestHandler(t *testing.T, channelSecret string) (*Handler, *kv.MemStore, *[]string) {
	t.Helper()
	mem := kv.NewMemStore()
	log := zap.NewNop().Sugar()

	var sent []string
	channel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/v2/bot/profile/") {
			fmt.Fprint(w, `{"displayName":"Mina","pictureUrl":"https://example.com/mina.png"}`)
			return
		}
		sent = append(sent, r.URL.Path)
		fmt.Fprint(w, "{}")
	}))
	t.Cleanup(channel.Close)

	surveys := store.NewSurveyStore(mem)
	keywords := store.NewKeywordMapStore(mem)
	eng := engine.New(
		surveys,
		keywords,
		store.NewSessionStore(mem),
		store.NewLeadStore(mem),
		line.NewClient("token", channel.URL, log),
		"report",
		log,
	)
	return New(mem, surveys, keywords, eng, channelSecret, log), mem, &sent
}

func newTestRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/webhook", h.Webhook).Methods("POST")
	r.HandleFunc("/listAll", h.ListAll).Methods("POST")
	r.HandleFunc("/putAny", h.PutAny).Methods("POST")
	r.HandleFunc("/loadAny", h.LoadAny).Methods("POST")
	r.HandleFunc("/deleteAny", h.DeleteAny).Methods("POST")
	r.HandleFunc("/kwMapGet", h.KwMapGet).Methods("POST")
	r.HandleFunc("/kwMapPut", h.KwMapPut).Methods("POST")
	r.HandleFunc("/surveyDelete", h.SurveyDelete).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestPutLoadDeleteRoundTrip(t *testing.T) {
	h, _, _ := newTestHandler(t, "")
	r := newTestRouter(h)

	rec, body := doJSON(t, r, "POST", "/putAny", `{"keyword":"survey:def:demo","payload":{"title":"Demo"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	rec, body = doJSON(t, r, "POST", "/loadAny", `{"keyword":"survey:def:demo"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	payload := body["payload"].(map[string]any)
	assert.Equal(t, "Demo", payload["title"])

	rec, _ = doJSON(t, r, "POST", "/deleteAny", `{"keyword":"survey:def:demo"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, r, "POST", "/loadAny", `{"keyword":"survey:def:demo"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestPutAnyValidation(t *testing.T) {
	h, _, _ := newTestHandler(t, "")
	r := newTestRouter(h)

	tests := []struct {
		name string
		body string
	}{
		{"empty keyword", `{"keyword":"  ","payload":{}}`},
		{"missing payload", `{"keyword":"k"}`},
		{"null payload", `{"keyword":"k","payload":null}`},
		{"broken json", `{"keyword":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, r, "POST", "/putAny", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["ok"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListAll(t *testing.T) {
	h, mem, _ := newTestHandler(t, "")
	r := newTestRouter(h)
	ctx := context.Background()

	rec, body := doJSON(t, r, "POST", "/listAll", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["db"])

	require.NoError(t, mem.Put(ctx, "survey:def:b", "{}", 0))
	require.NoError(t, mem.Put(ctx, "survey:def:a", "{}", 0))

	_, body = doJSON(t, r, "POST", "/listAll", `{}`)
	assert.Equal(t, []any{"survey:def:a", "survey:def:b"}, body["db"])
}

func TestKwMapPutNormalizesAndGet(t *testing.T) {
	h, _, _ := newTestHandler(t, "")
	r := newTestRouter(h)

	rec, _ := doJSON(t, r, "POST", "/kwMapPut", `{"payload":{" Well Check ":"demo"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, body := doJSON(t, r, "POST", "/kwMapGet", `{}`)
	payload := body["payload"].(map[string]any)
	assert.Equal(t, "demo", payload["wellcheck"])

	rec, body = doJSON(t, r, "POST", "/kwMapPut", `{"payload":null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestSurveyDeletePrunesKeywords(t *testing.T) {
	h, mem, _ := newTestHandler(t, "")
	r := newTestRouter(h)
	ctx := context.Background()

	require.NoError(t, mem.Put(ctx, store.SurveyPrefix+"demo", `{"title":"Demo"}`, 0))
	require.NoError(t, mem.Put(ctx, store.KeywordMapKey, `{"foo":"demo","bar":"other"}`, 0))

	rec, _ := doJSON(t, r, "POST", "/surveyDelete", `{"surveyName":"demo"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := mem.Get(ctx, store.SurveyPrefix+"demo")
	assert.Error(t, err)

	m, err := store.NewKeywordMapStore(mem).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bar": "other"}, m)

	rec, body := doJSON(t, r, "POST", "/surveyDelete", `{"surveyName":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t, "")
	r := newTestRouter(h)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.NotZero(t, body["ts"])
}

func signBody(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookSignature(t *testing.T) {
	h, mem, sent := newTestHandler(t, "channel-secret")
	r := newTestRouter(h)
	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, store.KeywordMapKey, `{"foo":"demo"}`, 0))

	body := `{"events":[{"type":"message","replyToken":"rt","source":{"userId":"U1"},"message":{"type":"text","text":"foo"}}]}`

	// Wrong signature: rejected before anything runs.
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	req.Header.Set("X-Line-Signature", "bogus")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, *sent)
	_, err := mem.Get(ctx, store.SessionPrefix+"U1")
	assert.Error(t, err)

	// Correct signature passes through to the engine.
	req = httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	req.Header.Set("X-Line-Signature", signBody(body, "channel-secret"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookProcessesEvents(t *testing.T) {
	h, mem, sent := newTestHandler(t, "")
	r := newTestRouter(h)
	ctx := context.Background()

	survey := `{"title":"Demo","nodes":{"q1":{"q":"How well do you fall asleep?","options":[{"t":"Fine","next":""}]}}}`
	require.NoError(t, mem.Put(ctx, store.SurveyPrefix+"demo", survey, 0))
	require.NoError(t, mem.Put(ctx, store.KeywordMapKey, `{"foo":"demo"}`, 0))

	body := `{"events":[{"type":"message","replyToken":"rt","source":{"userId":"U1"},"message":{"type":"text","text":"foo"}}]}`
	rec, decoded := doJSON(t, r, "POST", "/webhook", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decoded["ok"])
	require.NotEmpty(t, *sent)
	assert.Equal(t, "/v2/bot/message/reply", (*sent)[0])

	// A session now exists for the user.
	_, err := mem.Get(ctx, store.SessionPrefix+"U1")
	assert.NoError(t, err)
}

func TestWebhookBadJSON(t *testing.T) {
	h, _, _ := newTestHandler(t, "")
	r := newTestRouter(h)

	rec, body := doJSON(t, r, "POST", "/webhook", `{"events":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
}
