package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/chorequest/chorequest/internal/handler"
	"github.com/chorequest/chorequest/internal/middleware"
	"github.com/chorequest/chorequest/internal/notify"
	"github.com/chorequest/chorequest/internal/push"
	"github.com/chorequest/chorequest/internal/store"
	"github.com/chorequest/chorequest/internal/workflow"
	ws "github.com/chorequest/chorequest/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	taskH         *handler.TaskHandler
	archiveH      *handler.ArchiveHandler
	playerH       *handler.PlayerHandler
	notificationH *handler.NotificationHandler
	rewardH       *handler.RewardHandler
	settingsH     *handler.SettingsHandler
	pushH         *handler.PushHandler
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, pushCfg push.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	taskStore := store.NewTaskStore(db)
	archiveStore := store.NewArchiveStore(db)
	playerStore := store.NewPlayerStore(db)
	notificationStore := store.NewNotificationStore(db)
	rewardStore := store.NewRewardStore(db)
	settingsStore := store.NewSettingsStore(db)
	pushStore := store.NewPushStore(db)

	// Push delivery is optional; without VAPID keys the dispatcher is a no-op.
	var pushSvc *push.Service
	var pushH *handler.PushHandler
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}
	dispatcher := push.NewDispatcher(pushSvc, pushStore, logger.With("component", "push"))

	bus := notify.NewBus(notificationStore, playerStore, hub, dispatcher, logger.With("component", "notify"))

	wf := workflow.New(workflow.Config{
		DB:         db,
		Tasks:      taskStore,
		Archive:    archiveStore,
		Players:    playerStore,
		Rewards:    rewardStore,
		Settings:   settingsStore,
		Bus:        bus,
		Hub:        hub,
		Dispatcher: dispatcher,
		Logger:     logger.With("component", "workflow"),
	})

	return &Server{
		db:            db,
		hub:           hub,
		taskH:         handler.NewTaskHandler(taskStore, playerStore, wf, hub, logger.With("component", "task")),
		archiveH:      handler.NewArchiveHandler(archiveStore, hub, logger.With("component", "archive")),
		playerH:       handler.NewPlayerHandler(playerStore, wf, hub, logger.With("component", "player")),
		notificationH: handler.NewNotificationHandler(bus, notificationStore, logger.With("component", "notification")),
		rewardH:       handler.NewRewardHandler(rewardStore, wf, hub, logger.With("component", "reward")),
		settingsH:     handler.NewSettingsHandler(settingsStore, hub, logger.With("component", "settings")),
		pushH:         pushH,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Tasks and the approval pipeline
	mux.HandleFunc("POST /tasks", s.taskH.Create)
	mux.HandleFunc("GET /tasks", s.taskH.List)
	mux.HandleFunc("GET /tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PATCH /tasks/{id}", s.taskH.Patch)
	mux.HandleFunc("DELETE /tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /confirm/{id}", s.taskH.Confirm)

	// Archive
	mux.HandleFunc("GET /archive", s.archiveH.List)
	mux.HandleFunc("GET /archive/{id}", s.archiveH.Get)
	mux.HandleFunc("DELETE /archive", s.archiveH.Clear)

	// Player stats
	mux.HandleFunc("GET /player-stats", s.playerH.List)
	mux.HandleFunc("GET /player-stats/{id}", s.playerH.Get)
	mux.HandleFunc("POST /player-stats", s.playerH.Upsert)
	mux.HandleFunc("DELETE /player-stats/{id}", s.playerH.Delete)
	mux.HandleFunc("POST /player-stats/{id}/pin", s.playerH.SetPIN)
	mux.HandleFunc("DELETE /player-stats/{id}/pin", s.playerH.ClearPIN)
	mux.HandleFunc("POST /player-stats/{id}/pin/verify", s.rateLimitedHandler(s.playerH.VerifyPIN))

	// Notifications
	mux.HandleFunc("GET /notifications", s.notificationH.List)
	mux.HandleFunc("PATCH /notifications/seen", s.notificationH.MarkSeen)

	// Rewards
	mux.HandleFunc("POST /rewards", s.rewardH.Create)
	mux.HandleFunc("GET /rewards", s.rewardH.List)
	mux.HandleFunc("PUT /rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /rewards/{id}/claim", s.rewardH.Claim)

	// Scoring configuration
	mux.HandleFunc("GET /scoring-config", s.settingsH.GetScoringConfig)
	mux.HandleFunc("PUT /scoring-config", s.settingsH.UpdateScoringConfig)

	// Web push, only when VAPID keys are configured
	if s.pushH != nil {
		mux.HandleFunc("POST /push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /push/vapid-key", s.pushH.GetVAPIDKey)
	}

	// Real-time event feed
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
