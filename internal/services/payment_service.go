package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/propertyhub/backoffice/pkg/storage"
)

// PaymentProof is an uploaded manual payment receipt
type PaymentProof struct {
	Ref           string
	TransactionID *string
}

// ManualPaymentResult is the outcome of validating a manual payment.
// Payment is built but not persisted; the caller stores it in its own transaction.
type ManualPaymentResult struct {
	Success bool
	Payment *models.Payment
	Error   string
}

// PaymentGateway is the payment collaborator used at booking time
type PaymentGateway interface {
	ManualPayment(ctx context.Context, proof *PaymentProof, amount float64) (ManualPaymentResult, error)
}

// ManualPaymentGateway accepts a manual payment when its proof document is on file
type ManualPaymentGateway struct {
	documents storage.DocumentStore
}

// NewManualPaymentGateway creates a gateway backed by document storage
func NewManualPaymentGateway(documents storage.DocumentStore) *ManualPaymentGateway {
	return &ManualPaymentGateway{documents: documents}
}

// ManualPayment validates the proof and produces a pending payment record
func (g *ManualPaymentGateway) ManualPayment(ctx context.Context, proof *PaymentProof, amount float64) (ManualPaymentResult, error) {
	if proof == nil || proof.Ref == "" {
		return ManualPaymentResult{Error: "payment proof is required"}, nil
	}
	if amount < 0 {
		return ManualPaymentResult{Error: "payment amount cannot be negative"}, nil
	}

	ok, err := g.documents.Exists(ctx, proof.Ref)
	if err != nil {
		return ManualPaymentResult{}, fmt.Errorf("failed to verify payment proof: %w", err)
	}
	if !ok {
		return ManualPaymentResult{Error: "payment proof is invalid or missing"}, nil
	}

	ref := proof.Ref
	return ManualPaymentResult{
		Success: true,
		Payment: &models.Payment{
			ID:            uuid.New(),
			Amount:        amount,
			Method:        models.PaymentMethodManual,
			TransactionID: proof.TransactionID,
			ProofRef:      &ref,
			Status:        models.PaymentStatusPending,
		},
	}, nil
}
