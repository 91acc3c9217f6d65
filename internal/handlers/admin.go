package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
	"github.com/AnshRaj112/connectpro-relay/internal/relay"
	"github.com/AnshRaj112/connectpro-relay/internal/services"
)

var (
	ownerService *services.OwnerService
	trialMonitor *relay.TrialMonitor
	statsSource  relay.StatsSource
)

// InitAdminHandlers wires the admin API to the owner directory, the
// trial monitor and the stats aggregator.
func InitAdminHandlers(os *services.OwnerService, tm *relay.TrialMonitor, ss relay.StatsSource) {
	ownerService = os
	trialMonitor = tm
	statsSource = ss
}

// GetOwnersResponse represents the response for listing owners
type GetOwnersResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Owners  []models.Owner `json:"owners"`
	Total   int            `json:"total"`
}

// SetOwnerFlagRequest represents a request to toggle an owner flag
type SetOwnerFlagRequest struct {
	OwnerID int64 `json:"owner_id"`
	Value   bool  `json:"value"`
}

// AdminResponse is the generic admin mutation response
type AdminResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// GetOwners lists onboarded owners, newest first. ?limit= caps the page.
func GetOwners(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	owners, err := ownerService.ListOwners(r.Context(), limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(GetOwnersResponse{Success: false, Message: "Failed to list owners"})
		return
	}

	json.NewEncoder(w).Encode(GetOwnersResponse{Success: true, Owners: owners, Total: len(owners)})
}

// SetOwnerActive toggles whether an owner's relay accepts traffic.
func SetOwnerActive(w http.ResponseWriter, r *http.Request) {
	setOwnerFlag(w, r, ownerService.SetActive)
}

// SetOwnerVerified toggles an owner's verified badge.
func SetOwnerVerified(w http.ResponseWriter, r *http.Request) {
	setOwnerFlag(w, r, ownerService.SetVerified)
}

func setOwnerFlag(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, ownerID int64, value bool) error) {
	w.Header().Set("Content-Type", "application/json")

	var req SetOwnerFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(AdminResponse{Success: false, Message: "Invalid request body"})
		return
	}
	if req.OwnerID == 0 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(AdminResponse{Success: false, Message: "owner_id is required"})
		return
	}

	if err := apply(r.Context(), req.OwnerID, req.Value); err != nil {
		if errors.Is(err, relay.ErrOwnerNotFound) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(AdminResponse{Success: false, Message: "Owner not found"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(AdminResponse{Success: false, Message: "Update failed"})
		return
	}

	json.NewEncoder(w).Encode(AdminResponse{Success: true})
}

// StatsResponse carries the aggregate counts.
type StatsResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Stats   relay.Stats `json:"stats"`
}

// GetStats reports owner, end-user and conversation counts.
func GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	st, err := statsSource.Stats(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(StatsResponse{Success: false, Message: "Failed to load stats"})
		return
	}
	json.NewEncoder(w).Encode(StatsResponse{Success: true, Stats: st})
}

// RunTrialSweep forces an immediate trial notification sweep.
func RunTrialSweep(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := trialMonitor.Sweep(r.Context()); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(AdminResponse{Success: false, Message: "Sweep failed"})
		return
	}
	json.NewEncoder(w).Encode(AdminResponse{Success: true})
}
