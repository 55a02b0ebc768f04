package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/metrics"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Pinger reports storage health
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerManager manages all HTTP handlers
type HandlerManager struct {
	config       *config.ReceptionistConfig
	voiceHandler *VoiceHandler
	flowHandler  *FlowHandler
	health       Pinger
	metrics      *metrics.Metrics
}

// NewHandlerManager creates a new handler manager over already-built services
func NewHandlerManager(cfg *config.ReceptionistConfig, voiceHandler *VoiceHandler, flowHandler *FlowHandler, health Pinger, m *metrics.Metrics) *HandlerManager {
	return &HandlerManager{
		config:       cfg,
		voiceHandler: voiceHandler,
		flowHandler:  flowHandler,
		health:       health,
		metrics:      m,
	}
}

// SetupAllRoutes sets up all routes for all handlers
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(RecoveryMiddleware)
	router.Use(CORSMiddleware)
	router.Use(GlobalLoggingMiddleware)

	hm.voiceHandler.SetupRoutes(router)
	hm.SetupHealthRoutes(router)
	hm.SetupAPIRoutes(router)

	logger.Base().Info("All routes configured successfully")
}

// SetupHealthRoutes sets up liveness and metrics routes
func (hm *HandlerManager) SetupHealthRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", hm.handleHealth).Methods(http.MethodGet)
	if hm.metrics != nil {
		router.Handle("/metrics", hm.metrics.Handler()).Methods(http.MethodGet)
	}
}

// SetupAPIRoutes sets up the JWT-guarded admin API
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	if hm.flowHandler == nil {
		return
	}
	api := router.PathPrefix("/api").Subrouter()
	api.Use(APIKeyMiddleware(hm.config.SecretKey))
	hm.flowHandler.SetupRoutes(api)
}

func (hm *HandlerManager) handleHealth(w http.ResponseWriter, r *http.Request) {
	if hm.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := hm.health.Ping(ctx); err != nil {
			logger.Base().Warn("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "instance_id": hm.config.InstanceID})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "instance_id": hm.config.InstanceID})
}
