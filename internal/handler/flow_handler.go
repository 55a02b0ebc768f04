package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// KnowledgeIndexer rebuilds a tenant's semantic search collection
type KnowledgeIndexer interface {
	IndexTenant(ctx context.Context, tenantID string) error
}

// FlowHandler handles the tenant admin API: call flows and knowledge reindexing
type FlowHandler struct {
	repos   repository.RepositoryManager
	indexer KnowledgeIndexer
}

// NewFlowHandler creates a new flow handler. indexer may be nil when semantic search is off.
func NewFlowHandler(repos repository.RepositoryManager, indexer KnowledgeIndexer) *FlowHandler {
	return &FlowHandler{repos: repos, indexer: indexer}
}

// SaveFlowRequest is the body of a flow save
type SaveFlowRequest struct {
	Name       string            `json:"name"`
	Definition domain.Definition `json:"definition"`
}

// SetupRoutes mounts the admin routes on an already-guarded router
func (h *FlowHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/tenants/{tenantId}/flows/{flowType}", h.SaveFlow).Methods(http.MethodPut)
	router.HandleFunc("/tenants/{tenantId}/flows/{flowType}", h.GetFlow).Methods(http.MethodGet)
	router.HandleFunc("/tenants/{tenantId}/knowledge/reindex", h.ReindexKnowledge).Methods(http.MethodPost)
}

// SaveFlow godoc
// @Summary Save and activate a call flow
// @Description Validates the flow graph and stores it as the new active version for its type
// @Tags flows
// @Accept json
// @Produce json
// @Param tenantId path string true "Tenant ID"
// @Param flowType path string true "MAIN_MENU, AFTER_HOURS or NO_ANSWER"
// @Success 200 {object} domain.Flow "Flow saved"
// @Failure 400 {object} map[string]string "Invalid flow"
// @Failure 404 {object} map[string]string "Tenant not found"
// @Router /api/tenants/{tenantId}/flows/{flowType} [put]
func (h *FlowHandler) SaveFlow(w http.ResponseWriter, r *http.Request) {
	tenant, flowType, ok := h.target(w, r)
	if !ok {
		return
	}

	var req SaveFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid flow definition: "+err.Error())
		return
	}
	if err := req.Definition.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	flow := &domain.Flow{
		TenantID:   tenant.ID,
		FlowType:   flowType,
		Name:       req.Name,
		Definition: req.Definition,
	}
	if err := h.repos.Flow().SaveActive(r.Context(), flow); err != nil {
		logger.Base().Error("Failed to save flow", zap.String("tenant_id", tenant.ID), zap.String("flow_type", string(flowType)), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "failed to save flow")
		return
	}

	logger.Base().Info("Flow activated",
		zap.String("tenant_id", tenant.ID),
		zap.String("flow_type", string(flowType)),
		zap.Int("version", flow.Version),
		zap.Int("steps", len(flow.Definition.Steps)))
	writeJSON(w, http.StatusOK, flow)
}

// GetFlow returns the active flow of a type
func (h *FlowHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	tenant, flowType, ok := h.target(w, r)
	if !ok {
		return
	}
	flow, err := h.repos.Flow().GetActive(r.Context(), tenant.ID, flowType)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load flow")
		return
	}
	if flow == nil {
		writeJSONError(w, http.StatusNotFound, "no active flow")
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

// ReindexKnowledge rebuilds the tenant's semantic search collection after FAQ edits
func (h *FlowHandler) ReindexKnowledge(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]
	if h.indexer == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "semantic search is disabled")
		return
	}
	if err := h.indexer.IndexTenant(r.Context(), tenantID); err != nil {
		logger.Base().Error("Failed to reindex knowledge", zap.String("tenant_id", tenantID), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "failed to reindex")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "indexed"})
}

// target resolves the tenant and flow type path values, answering the request on failure
func (h *FlowHandler) target(w http.ResponseWriter, r *http.Request) (*domain.Tenant, domain.FlowType, bool) {
	vars := mux.Vars(r)
	flowType := domain.FlowType(vars["flowType"])
	if !flowType.Valid() {
		writeJSONError(w, http.StatusBadRequest, "unknown flow type "+string(flowType))
		return nil, "", false
	}
	tenant, err := h.repos.Tenant().GetByID(r.Context(), vars["tenantId"])
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load tenant")
		return nil, "", false
	}
	if tenant == nil {
		writeJSONError(w, http.StatusNotFound, "tenant not found")
		return nil, "", false
	}
	return tenant, flowType, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Base().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
