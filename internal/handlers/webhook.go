package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
	"github.com/AnshRaj112/connectpro-relay/internal/relay"
	"github.com/AnshRaj112/connectpro-relay/internal/services"
)

var (
	paymentService *services.PaymentService
	wizard         *relay.Wizard
)

// InitPaymentHandlers wires the payment webhook to the gateway verifier
// and the onboarding wizard.
func InitPaymentHandlers(ps *services.PaymentService, w *relay.Wizard) {
	paymentService = ps
	wizard = w
}

// WebhookResponse represents the response to a payment webhook
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// PaymentWebhook handles payment confirmations from the gateway. The
// signature is verified before anything is applied; replays of the same
// payment reference are harmless.
func PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var payload services.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(WebhookResponse{Success: false, Message: "Invalid request body"})
		return
	}

	if !paymentService.ValidateWebhook(&payload) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(WebhookResponse{Success: false, Message: "Invalid signature"})
		return
	}

	plan, ok := models.ParsePlan(payload.Plan)
	if !ok || !plan.RequiresPayment() {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(WebhookResponse{Success: false, Message: "Unknown plan"})
		return
	}

	if err := wizard.OnPaymentConfirmed(r.Context(), payload.Identity, plan, payload.PaymentRef); err != nil {
		log.Printf("Payment webhook: confirmation failed for %d: %v", payload.Identity, err)
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(WebhookResponse{Success: false, Message: "Could not apply payment"})
		return
	}

	json.NewEncoder(w).Encode(WebhookResponse{Success: true})
}
