package service

import (
	"context"

	"github.com/creatorhub/payout-service/internal/model"
	"github.com/creatorhub/payout-service/internal/provider"
	"go.uber.org/zap"
)

// Rails binds every supported provider+instrument adapter plus the two
// provider-family verifiers
type Rails struct {
	PayPalAccount   provider.Adapter
	PayPalCard      provider.Adapter
	FlutterwaveCard provider.Adapter
	Mpesa           provider.Adapter
	Airtel          provider.Adapter
	Tigo            provider.Adapter

	PayPalVerifier      provider.Verifier
	FlutterwaveVerifier provider.Verifier
}

// Dispatcher routes a withdrawal to the adapter its method selects.
// The routing table is closed: an unrecognized method fails before any
// network call, and no retry happens inside this layer.
type Dispatcher struct {
	adapters  map[model.Method]provider.Adapter
	verifiers map[model.MethodFamily]provider.Verifier
	logger    *zap.Logger
}

// NewDispatcher builds the method routing table. The three card methods
// share the Flutterwave card adapter; aliases are resolved by ParseMethod
// before the table is consulted, so each rail appears exactly once.
func NewDispatcher(rails Rails, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		adapters: map[model.Method]provider.Adapter{
			model.MethodPayPal:         rails.PayPalAccount,
			model.MethodPayPalCard:     rails.PayPalCard,
			model.MethodCardVisa:       rails.FlutterwaveCard,
			model.MethodCardMastercard: rails.FlutterwaveCard,
			model.MethodCardAmex:       rails.FlutterwaveCard,
			model.MethodMpesa:          rails.Mpesa,
			model.MethodAirtel:         rails.Airtel,
			model.MethodTigo:           rails.Tigo,
		},
		verifiers: map[model.MethodFamily]provider.Verifier{
			model.FamilyPayPal:      rails.PayPalVerifier,
			model.FamilyFlutterwave: rails.FlutterwaveVerifier,
		},
		logger: logger,
	}
}

// AdapterFor resolves a raw method string to its adapter
func (d *Dispatcher) AdapterFor(rawMethod string) (provider.Adapter, error) {
	method, err := model.ParseMethod(rawMethod)
	if err != nil {
		return nil, err
	}
	adapter, ok := d.adapters[method]
	if !ok {
		return nil, model.NewProviderError(model.ErrUnsupportedMethod, "", method, "no adapter registered")
	}
	return adapter, nil
}

// Dispatch validates the request and hands it to exactly one adapter.
// Routing and validation failures happen before any side effect.
func (d *Dispatcher) Dispatch(ctx context.Context, req *model.WithdrawalRequest) (*model.PayoutResult, error) {
	method, err := model.ParseMethod(string(req.Method))
	if err != nil {
		return nil, err
	}
	req.Method = method

	if err := req.Validate(); err != nil {
		return nil, err
	}

	adapter := d.adapters[method]
	d.logger.Debug("Dispatching withdrawal",
		zap.String("method", string(method)),
		zap.String("adapter", adapter.Name()),
		zap.String("userId", req.UserID),
	)

	return adapter.Dispatch(ctx, req)
}

// Verify routes a status query to the provider family that owns the
// method. The result carries the provider's native status vocabulary.
func (d *Dispatcher) Verify(ctx context.Context, reference, rawMethod string) (*model.VerificationResult, error) {
	method, err := model.ParseMethod(rawMethod)
	if err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, model.NewProviderError(model.ErrVerificationFailed, "", method, "reference is required")
	}

	verifier := d.verifiers[method.Family()]
	return verifier.Verify(ctx, reference)
}
