package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
)

// PaymentService builds signed checkout links and verifies the gateway's
// webhook callbacks. Both directions share one HMAC-SHA256 secret.
type PaymentService struct {
	secret     []byte
	gatewayURL string
}

func NewPaymentService(secret, gatewayURL string) *PaymentService {
	return &PaymentService{secret: []byte(secret), gatewayURL: gatewayURL}
}

func (s *PaymentService) sign(identity int64, plan models.Plan, ref string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d:%s:%s", identity, plan, ref)
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateLink returns the checkout URL for identity and plan. The
// signature binds the link to both so a tampered plan fails verification.
func (s *PaymentService) GenerateLink(identity int64, plan models.Plan) string {
	sig := s.sign(identity, plan, "")
	return fmt.Sprintf("%s/pay?uid=%d&plan=%s&sig=%s", s.gatewayURL, identity, plan, sig)
}

// WebhookPayload is the gateway's payment confirmation body.
type WebhookPayload struct {
	Identity   int64  `json:"uid"`
	Plan       string `json:"plan"`
	PaymentRef string `json:"payment_ref"`
	Signature  string `json:"sig"`
}

// ValidateWebhook verifies the payload signature in constant time.
func (s *PaymentService) ValidateWebhook(p *WebhookPayload) bool {
	plan, ok := models.ParsePlan(p.Plan)
	if !ok {
		return false
	}
	want := s.sign(p.Identity, plan, p.PaymentRef)
	return hmac.Equal([]byte(want), []byte(p.Signature))
}
