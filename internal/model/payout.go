package model

import (
	"time"
)

// PayoutStatus is the canonical status of a dispatch attempt
type PayoutStatus string

const (
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// RequiredAction marks a step-up authentication challenge the card issuer
// demands before the charge can complete
type RequiredAction string

const (
	ActionNone RequiredAction = ""
	ActionPin  RequiredAction = "pin"
	ActionOtp  RequiredAction = "otp"
)

// Method selects the provider+instrument rail a withdrawal is routed to
type Method string

const (
	MethodPayPal         Method = "paypal"
	MethodPayPalCard     Method = "paypal_card"
	MethodCardVisa       Method = "flutterwave_card_visa"
	MethodCardMastercard Method = "flutterwave_card_mastercard"
	MethodCardAmex       Method = "flutterwave_card_amex"
	MethodMpesa          Method = "mpesa"
	MethodAirtel         Method = "airtel"
	MethodTigo           Method = "tigo"
)

// methodAliases maps accepted alternate spellings onto canonical methods.
// Both spellings must resolve to the same adapter.
var methodAliases = map[string]Method{
	"flutterwave_mpesa":  MethodMpesa,
	"flutterwave_airtel": MethodAirtel,
	"flutterwave_tigo":   MethodTigo,
}

var supportedMethods = map[Method]struct{}{
	MethodPayPal:         {},
	MethodPayPalCard:     {},
	MethodCardVisa:       {},
	MethodCardMastercard: {},
	MethodCardAmex:       {},
	MethodMpesa:          {},
	MethodAirtel:         {},
	MethodTigo:           {},
}

// ParseMethod canonicalizes a raw method string, resolving aliases.
// Unknown values return ErrUnsupportedMethod.
func ParseMethod(s string) (Method, error) {
	if m, ok := methodAliases[s]; ok {
		return m, nil
	}
	m := Method(s)
	if _, ok := supportedMethods[m]; ok {
		return m, nil
	}
	return "", NewProviderError(ErrUnsupportedMethod, "", Method(s), "unknown payout method: "+s)
}

// MethodFamily groups methods by owning provider
type MethodFamily string

const (
	FamilyPayPal      MethodFamily = "paypal"
	FamilyFlutterwave MethodFamily = "flutterwave"
)

// Family returns the provider family that owns the method
func (m Method) Family() MethodFamily {
	switch m {
	case MethodPayPal, MethodPayPalCard:
		return FamilyPayPal
	default:
		return FamilyFlutterwave
	}
}

// WithdrawalRequest is the unit of work submitted to the orchestrator.
// Only the instrument fields required by Method are expected to be set.
type WithdrawalRequest struct {
	UserID      string  `json:"userId"`
	Method      Method  `json:"method"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"`
	PayPalEmail string  `json:"paypalEmail,omitempty"`
	PhoneNumber string  `json:"phoneNumber,omitempty"`
	CardNumber  string  `json:"cardNumber,omitempty"`
	CVV         string  `json:"cvv,omitempty"`
	ExpiryDate  string  `json:"expiryDate,omitempty"`
	FullName    string  `json:"fullName,omitempty"`
	Email       string  `json:"email,omitempty"`
	Note        string  `json:"note,omitempty"`
}

// Validate checks that the fields the resolved method requires are present
// and non-empty. A request missing instrument fields is rejected, never
// forwarded to a provider.
func (r *WithdrawalRequest) Validate() error {
	if r.UserID == "" {
		return NewProviderError(ErrInvalidInstrument, "", r.Method, "userId is required")
	}
	if r.Amount <= 0 {
		return NewProviderError(ErrInvalidInstrument, "", r.Method, "amount must be positive")
	}

	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch r.Method {
	case MethodPayPal:
		require("paypalEmail", r.PayPalEmail)
	case MethodPayPalCard:
		require("phoneNumber", r.PhoneNumber)
	case MethodCardVisa, MethodCardMastercard, MethodCardAmex:
		require("cardNumber", r.CardNumber)
		require("cvv", r.CVV)
		require("expiryDate", r.ExpiryDate)
		require("fullName", r.FullName)
		require("email", r.Email)
	case MethodMpesa, MethodAirtel, MethodTigo:
		require("phoneNumber", r.PhoneNumber)
		require("fullName", r.FullName)
	default:
		return NewProviderError(ErrUnsupportedMethod, "", r.Method, "unknown payout method: "+string(r.Method))
	}

	if len(missing) > 0 {
		msg := "missing required fields:"
		for _, f := range missing {
			msg += " " + f
		}
		return NewProviderError(ErrInvalidInstrument, "", r.Method, msg)
	}
	return nil
}

// PayoutResult is the canonical outcome of one dispatch attempt.
// It is constructed once by the result normalizer and never mutated;
// later verification produces a fresh VerificationResult instead.
type PayoutResult struct {
	Success           bool           `json:"success"`
	Status            PayoutStatus   `json:"status"`
	RequiresAction    RequiredAction `json:"requiresAction,omitempty"`
	ProviderReference string         `json:"providerReference,omitempty"`
	InternalReference string         `json:"internalReference,omitempty"`
	Message           string         `json:"message,omitempty"`
}

// VerificationResult carries the owning provider's view of a payout.
// Status uses the provider's native vocabulary (PayPal batch statuses
// lowercased, Flutterwave statuses verbatim); Details is the raw provider
// payload, opaque to the caller.
type VerificationResult struct {
	Status  string                 `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PayoutRecord is the persisted envelope around a dispatch attempt
type PayoutRecord struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"userId"`
	Method             Method         `json:"method"`
	Amount             float64        `json:"amount"`
	Currency           string         `json:"currency,omitempty"`
	Status             PayoutStatus   `json:"status"`
	RequiresAction     RequiredAction `json:"requiresAction,omitempty"`
	ProviderReference  string         `json:"providerReference,omitempty"`
	InternalReference  string         `json:"internalReference,omitempty"`
	Message            string         `json:"message,omitempty"`
	LastVerifiedStatus string         `json:"lastVerifiedStatus,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}
