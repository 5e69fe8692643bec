package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/zxcv8096-dotcom/line-tool/auth"
	"github.com/zxcv8096-dotcom/line-tool/config"
	"github.com/zxcv8096-dotcom/line-tool/engine"
	"github.com/zxcv8096-dotcom/line-tool/handlers"
	"github.com/zxcv8096-dotcom/line-tool/kv"
	"github.com/zxcv8096-dotcom/line-tool/line"
	"github.com/zxcv8096-dotcom/line-tool/store"
)

func main() {
	logger := newLogger("prod")
	defer logger.Sync()
	log := logger.Sugar()

	cfg := config.Load(log)
	if cfg.LogMode != "prod" {
		logger = newLogger(cfg.LogMode)
		log = logger.Sugar()
	}

	if cfg.ChannelAccessToken == "" {
		log.Fatal("CHANNEL_ACCESS_TOKEN is not set")
	}
	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is not set")
	}

	kvStore, err := kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalw("redis connect failed", "addr", cfg.RedisAddr, "error", err)
	}
	defer kvStore.Close()

	surveys := store.NewSurveyStore(kvStore)
	keywords := store.NewKeywordMapStore(kvStore)
	sessions := store.NewSessionStore(kvStore)
	leads := store.NewLeadStore(kvStore)

	client := line.NewClient(cfg.ChannelAccessToken, cfg.LineAPIBase, log)
	eng := engine.New(surveys, keywords, sessions, leads, client, cfg.ReportCommand, log)
	h := handlers.New(kvStore, surveys, keywords, eng, cfg.ChannelSecret, log)

	r := mux.NewRouter()
	r.Use(handlers.AccessLog(log))

	r.HandleFunc("/webhook", h.Webhook).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")

	// Back-office routes, token-guarded.
	admin := r.NewRoute().Subrouter()
	admin.Use(auth.AdminMiddleware(cfg.AdminTokenHash, log))
	admin.HandleFunc("/listAll", h.ListAll).Methods("POST")
	admin.HandleFunc("/putAny", h.PutAny).Methods("POST")
	admin.HandleFunc("/loadAny", h.LoadAny).Methods("POST")
	admin.HandleFunc("/deleteAny", h.DeleteAny).Methods("POST")
	admin.HandleFunc("/kwMapGet", h.KwMapGet).Methods("POST")
	admin.HandleFunc("/kwMapPut", h.KwMapPut).Methods("POST")
	admin.HandleFunc("/surveyDelete", h.SurveyDelete).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	handler := c.Handler(r)

	log.Infow("server starting", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatalw("server stopped", "error", err)
	}
}

func newLogger(mode string) *zap.Logger {
	if mode == "dev" {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}
