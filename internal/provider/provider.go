package provider

import (
	"context"

	"github.com/creatorhub/payout-service/internal/model"
)

// Adapter is one provider+instrument rail. Dispatch performs the outbound
// transfer/charge call and returns the normalized result.
type Adapter interface {
	// Name returns the rail name, e.g. "paypal_account" or "flutterwave_mpesa"
	Name() string

	// Dispatch sends the withdrawal to the provider
	Dispatch(ctx context.Context, req *model.WithdrawalRequest) (*model.PayoutResult, error)
}

// Verifier polls the owning provider for the current status of a payout
type Verifier interface {
	// Verify queries the provider by the reference stored at dispatch time
	Verify(ctx context.Context, reference string) (*model.VerificationResult, error)
}
