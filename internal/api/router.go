package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dwarpal-ai/dwarpal/internal/action"
	"github.com/dwarpal-ai/dwarpal/internal/assets"
	"github.com/dwarpal-ai/dwarpal/internal/auth"
	"github.com/dwarpal-ai/dwarpal/internal/events"
	"github.com/dwarpal-ai/dwarpal/internal/orchestrator"
	"github.com/dwarpal-ai/dwarpal/internal/perception"
	"github.com/dwarpal-ai/dwarpal/internal/services"
	"github.com/dwarpal-ai/dwarpal/internal/store"
)

// Deps bundles what the HTTP surface needs from the rest of the service.
// All fields are required.
type Deps struct {
	Store        store.Store
	Orchestrator *orchestrator.Orchestrator
	Auth         *auth.Service
	Bus          *events.Bus
	Layout       *assets.Layout
	Transcriber  perception.Transcriber
	Executor     *action.Executor
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(Recover)

	// Domain services
	sessionSvc := services.NewSessionService(d.Store)
	memberSvc := services.NewMemberService(d.Store, d.Layout)

	// Handlers
	healthHandler := NewHealthHandler(d.Store)
	authHandler := NewAuthHandler(d.Auth)
	ringHandler := NewRingHandler(d.Orchestrator)
	sessionHandler := NewSessionHandler(sessionSvc, d.Layout)
	memberHandler := NewMemberHandler(memberSvc)
	mediaHandler := NewMediaHandler(d.Transcriber, d.Executor, d.Layout)
	wsHandler := NewWSHandler(d.Bus)

	// Health endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/health/db", healthHandler.CheckStoreHealth).Methods("GET")

	// Auth endpoints
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	router.HandleFunc("/api/auth/logout", authHandler.Logout).Methods("POST")
	router.Handle("/api/auth/me", authHandler.RequireAuth(http.HandlerFunc(authHandler.Me))).Methods("GET")

	// Ring and conversation endpoints
	router.HandleFunc("/api/ring", ringHandler.Ring).Methods("POST")
	router.HandleFunc("/api/ai-reply", ringHandler.AIReply).Methods("POST")
	router.Handle("/api/owner-reply", authHandler.RequireAuth(http.HandlerFunc(ringHandler.OwnerReply))).Methods("POST")

	// Session read endpoints
	router.HandleFunc("/api/session/{id}/status", sessionHandler.Status).Methods("GET")
	router.HandleFunc("/api/session/{id}/detail", sessionHandler.Detail).Methods("GET")
	router.HandleFunc("/api/logs", sessionHandler.Logs).Methods("GET")

	// Member endpoints, owner-scoped behind auth
	members := router.PathPrefix("/api/members").Subrouter()
	members.Use(authHandler.RequireAuth)
	members.HandleFunc("", memberHandler.List).Methods("GET")
	members.HandleFunc("", memberHandler.Create).Methods("POST")
	members.HandleFunc("/{id}", memberHandler.Update).Methods("PUT")
	members.HandleFunc("/{id}", memberHandler.Delete).Methods("DELETE")

	// Speech endpoints
	router.HandleFunc("/api/transcribe", mediaHandler.Transcribe).Methods("POST")
	router.HandleFunc("/api/tts", mediaHandler.TTS).Methods("POST")

	// Realtime events
	router.HandleFunc("/api/ws/{channel}", wsHandler.Serve).Methods("GET")

	// Metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Static artifacts. Only the three public subdirectories are mounted,
	// never the data dir root.
	mountStatic(router, "/static/snaps/", d.Layout.SnapsDir())
	mountStatic(router, "/static/tts/", d.Layout.TTSDir())
	mountStatic(router, "/static/members/", d.Layout.MembersDir())

	return router
}

func mountStatic(router *mux.Router, prefix, dir string) {
	router.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(dir))))
}
