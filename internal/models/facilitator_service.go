package models

import "context"

// FacilitatorService settles and verifies payment proofs on behalf of a
// resource server. Settle never returns an error for an expected negative
// outcome (rejected broadcast, replay); those come back as a structured
// result with Success=false.
type FacilitatorService interface {
	SupportedKinds() []SupportedKind
	Settle(ctx context.Context, payload *PaymentPayload, req *PaymentRequirement) *SettlementResult
	Verify(ctx context.Context, payload *PaymentPayload, req *PaymentRequirement) *VerificationResult
}
