package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"arkham/apps/arkham/internal/model"
	"arkham/apps/arkham/internal/progress"
	"arkham/apps/arkham/internal/repository"
)

// AddressStore is the read-side repository surface the handlers use.
type AddressStore interface {
	GetAddress(address, chain string) (*model.Address, []string, error)
	GetAddressesByTag(label string) ([]model.Address, error)
	GetStats() (*repository.Stats, error)
}

// AddressHandler serves read-only lookups over the crawled data
type AddressHandler struct {
	store   AddressStore
	tracker *progress.Tracker
	logger  *zap.Logger
}

// NewAddressHandler creates a new AddressHandler
func NewAddressHandler(store AddressStore, tracker *progress.Tracker, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{
		store:   store,
		tracker: tracker,
		logger:  logger,
	}
}

// GetAddress handles GET /api/addresses/{address}
func (h *AddressHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address := vars["address"]
	chain := r.URL.Query().Get("chain")

	if address == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "missing_address", "Address is required")
		return
	}

	addr, labels, err := h.store.GetAddress(address, chain)
	if err != nil {
		h.logger.Error("Failed to get address", zap.String("address", address), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to retrieve address")
		return
	}

	if addr == nil {
		h.writeErrorResponse(w, http.StatusNotFound, "address_not_found", "Address not found")
		return
	}

	if labels == nil {
		labels = []string{}
	}
	response := AddressResponse{
		Address:    addr.Address,
		Name:       addr.Name,
		Chain:      addr.Chain,
		EntityType: addr.EntityType,
		Tags:       labels,
		CreatedAt:  addr.CreatedAt,
		UpdatedAt:  addr.UpdatedAt,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetAddressesByTag handles GET /api/tags/{label}/addresses
func (h *AddressHandler) GetAddressesByTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	label := vars["label"]

	if label == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "missing_tag", "Tag label is required")
		return
	}

	addresses, err := h.store.GetAddressesByTag(label)
	if err != nil {
		h.logger.Error("Failed to get addresses by tag", zap.String("tag", label), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to retrieve addresses")
		return
	}

	response := TagAddressesResponse{
		Tag:       label,
		Count:     len(addresses),
		Addresses: make([]TagAddressEntry, 0, len(addresses)),
	}
	for _, addr := range addresses {
		response.Addresses = append(response.Addresses, TagAddressEntry{
			Address:    addr.Address,
			Name:       addr.Name,
			Chain:      addr.Chain,
			EntityType: addr.EntityType,
			CreatedAt:  addr.CreatedAt,
			UpdatedAt:  addr.UpdatedAt,
		})
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetStats handles GET /api/stats
func (h *AddressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to retrieve stats")
		return
	}

	response := StatsResponse{
		RunID:         h.tracker.RunID(),
		Addresses:     stats.Addresses,
		Tags:          stats.Tags,
		Categories:    stats.Categories,
		AddressTags:   stats.AddressTags,
		Processed:     h.tracker.Processed(),
		CompletedTags: h.tracker.CompletedCount(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response with the specified status code
func (h *AddressHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeErrorResponse writes an error response
func (h *AddressHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	errorResponse := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	h.writeJSONResponse(w, statusCode, errorResponse)
}
