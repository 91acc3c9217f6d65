package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/AnshRaj112/connectpro-relay/internal/database"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// HealthCheck reports process and datastore health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Postgres: "ok", Redis: "ok"}
	status := http.StatusOK

	if err := database.PostgresDB.PingContext(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Postgres = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if err := database.RedisClient.Ping(r.Context()).Err(); err != nil {
		resp.Status = "degraded"
		resp.Redis = "unreachable"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
