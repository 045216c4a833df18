package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/creatorhub/payout-service/internal/model"
	"github.com/creatorhub/payout-service/internal/provider"
	"github.com/creatorhub/payout-service/internal/provider/flutterwave"
	"go.uber.org/zap"
)

type fakeAdapter struct {
	name  string
	calls int
	last  *model.WithdrawalRequest
	err   error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Dispatch(ctx context.Context, req *model.WithdrawalRequest) (*model.PayoutResult, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.PayoutResult{
		Success:           true,
		Status:            model.PayoutStatusProcessing,
		ProviderReference: "ref-" + f.name,
		InternalReference: "internal-" + f.name,
	}, nil
}

type fakeVerifier struct {
	calls int
	last  string
}

func (f *fakeVerifier) Verify(ctx context.Context, reference string) (*model.VerificationResult, error) {
	f.calls++
	f.last = reference
	return &model.VerificationResult{Status: "success"}, nil
}

type fakeRails struct {
	paypalAccount *fakeAdapter
	paypalCard    *fakeAdapter
	card          *fakeAdapter
	mpesa         *fakeAdapter
	airtel        *fakeAdapter
	tigo          *fakeAdapter
	paypalVerify  *fakeVerifier
	flwVerify     *fakeVerifier
}

func newFakeDispatcher(t *testing.T) (*Dispatcher, *fakeRails) {
	t.Helper()
	rails := &fakeRails{
		paypalAccount: &fakeAdapter{name: "paypal_account"},
		paypalCard:    &fakeAdapter{name: "paypal_card"},
		card:          &fakeAdapter{name: "flutterwave_card"},
		mpesa:         &fakeAdapter{name: "flutterwave_mpesa"},
		airtel:        &fakeAdapter{name: "flutterwave_airtel"},
		tigo:          &fakeAdapter{name: "flutterwave_tigo"},
		paypalVerify:  &fakeVerifier{},
		flwVerify:     &fakeVerifier{},
	}
	logger, _ := zap.NewDevelopment()
	d := NewDispatcher(Rails{
		PayPalAccount:       rails.paypalAccount,
		PayPalCard:          rails.paypalCard,
		FlutterwaveCard:     rails.card,
		Mpesa:               rails.mpesa,
		Airtel:              rails.airtel,
		Tigo:                rails.tigo,
		PayPalVerifier:      rails.paypalVerify,
		FlutterwaveVerifier: rails.flwVerify,
	}, logger)
	return d, rails
}

func (r *fakeRails) totalCalls() int {
	return r.paypalAccount.calls + r.paypalCard.calls + r.card.calls +
		r.mpesa.calls + r.airtel.calls + r.tigo.calls
}

func TestAdapterFor_AliasesResolveToSameAdapter(t *testing.T) {
	d, _ := newFakeDispatcher(t)

	pairs := [][2]string{
		{"mpesa", "flutterwave_mpesa"},
		{"airtel", "flutterwave_airtel"},
		{"tigo", "flutterwave_tigo"},
	}

	for _, pair := range pairs {
		a, err := d.AdapterFor(pair[0])
		if err != nil {
			t.Fatalf("AdapterFor(%q): %v", pair[0], err)
		}
		b, err := d.AdapterFor(pair[1])
		if err != nil {
			t.Fatalf("AdapterFor(%q): %v", pair[1], err)
		}
		if a != b {
			t.Errorf("expected %q and %q to resolve to the same adapter", pair[0], pair[1])
		}
	}
}

func TestAdapterFor_CardMethodsShareAdapter(t *testing.T) {
	d, rails := newFakeDispatcher(t)

	for _, method := range []string{"flutterwave_card_visa", "flutterwave_card_mastercard", "flutterwave_card_amex"} {
		a, err := d.AdapterFor(method)
		if err != nil {
			t.Fatalf("AdapterFor(%q): %v", method, err)
		}
		if a != provider.Adapter(rails.card) {
			t.Errorf("expected %q to resolve to the shared card adapter", method)
		}
	}
}

func TestDispatch_UnsupportedMethodNoSideEffects(t *testing.T) {
	d, rails := newFakeDispatcher(t)

	_, err := d.Dispatch(context.Background(), &model.WithdrawalRequest{
		UserID: "u1",
		Method: "bitcoin",
		Amount: 10,
	})
	if !errors.Is(err, model.ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got: %v", err)
	}
	if rails.totalCalls() != 0 {
		t.Errorf("expected zero adapter calls on routing failure, got %d", rails.totalCalls())
	}
}

func TestDispatch_MissingInstrumentRejected(t *testing.T) {
	d, rails := newFakeDispatcher(t)

	_, err := d.Dispatch(context.Background(), &model.WithdrawalRequest{
		UserID: "u1",
		Method: model.MethodPayPal,
		Amount: 10,
		// paypalEmail intentionally absent
	})
	if !errors.Is(err, model.ErrInvalidInstrument) {
		t.Fatalf("expected ErrInvalidInstrument, got: %v", err)
	}
	if rails.totalCalls() != 0 {
		t.Errorf("expected zero adapter calls on validation failure, got %d", rails.totalCalls())
	}
}

func TestDispatch_AliasCanonicalizedBeforeAdapter(t *testing.T) {
	d, rails := newFakeDispatcher(t)

	_, err := d.Dispatch(context.Background(), &model.WithdrawalRequest{
		UserID:      "u1",
		Method:      "flutterwave_airtel",
		Amount:      2500,
		PhoneNumber: "+255780000000",
		FullName:    "Asha Omar",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if rails.airtel.calls != 1 {
		t.Fatalf("expected the airtel adapter to be called once, got %d", rails.airtel.calls)
	}
	if rails.airtel.last.Method != model.MethodAirtel {
		t.Errorf("expected canonical method airtel, got %q", rails.airtel.last.Method)
	}
}

func TestVerify_RoutesByFamily(t *testing.T) {
	d, rails := newFakeDispatcher(t)

	if _, err := d.Verify(context.Background(), "BATCH1", "paypal_card"); err != nil {
		t.Fatalf("paypal verify: %v", err)
	}
	if rails.paypalVerify.calls != 1 || rails.flwVerify.calls != 0 {
		t.Errorf("expected the PayPal verifier to own paypal_card, got paypal=%d flw=%d",
			rails.paypalVerify.calls, rails.flwVerify.calls)
	}

	if _, err := d.Verify(context.Background(), "123456", "flutterwave_mpesa"); err != nil {
		t.Fatalf("flutterwave verify: %v", err)
	}
	if rails.flwVerify.calls != 1 {
		t.Errorf("expected the Flutterwave verifier to own mpesa, got %d calls", rails.flwVerify.calls)
	}
	if rails.flwVerify.last != "123456" {
		t.Errorf("expected the stored reference to be forwarded, got %q", rails.flwVerify.last)
	}
}

func TestVerify_EmptyReference(t *testing.T) {
	d, _ := newFakeDispatcher(t)

	_, err := d.Verify(context.Background(), "", "mpesa")
	if !errors.Is(err, model.ErrVerificationFailed) {
		t.Errorf("expected ErrVerificationFailed for empty reference, got: %v", err)
	}
}

// Alias dispatches must produce structurally identical wire payloads apart
// from the generated reference.
func TestDispatch_AliasPayloadIdentity(t *testing.T) {
	var bodies []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		if err := json.Unmarshal(data, &body); err != nil {
			t.Errorf("unmarshal transfer payload: %v", err)
		}
		bodies = append(bodies, body)
		w.Write([]byte(`{"status":"success","data":{"id":42,"status":"NEW"}}`))
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	flwClient := flutterwave.NewClient(server.URL, "sk", 5*time.Second, logger)
	mpesa := flutterwave.NewTransferAdapter(flwClient, "mpesa", "MPESA")

	d := NewDispatcher(Rails{
		PayPalAccount:       &fakeAdapter{name: "paypal_account"},
		PayPalCard:          &fakeAdapter{name: "paypal_card"},
		FlutterwaveCard:     &fakeAdapter{name: "flutterwave_card"},
		Mpesa:               mpesa,
		Airtel:              &fakeAdapter{name: "flutterwave_airtel"},
		Tigo:                &fakeAdapter{name: "flutterwave_tigo"},
		PayPalVerifier:      &fakeVerifier{},
		FlutterwaveVerifier: flwClient,
	}, logger)

	for _, method := range []string{"mpesa", "flutterwave_mpesa"} {
		_, err := d.Dispatch(context.Background(), &model.WithdrawalRequest{
			UserID:      "u42",
			Method:      model.Method(method),
			Amount:      5000,
			PhoneNumber: "+255713000000",
			FullName:    "Juma Mwangi",
		})
		if err != nil {
			t.Fatalf("dispatch via %q: %v", method, err)
		}
	}

	if len(bodies) != 2 {
		t.Fatalf("expected two wire calls, got %d", len(bodies))
	}
	for _, body := range bodies {
		delete(body, "reference")
	}
	if !reflect.DeepEqual(bodies[0], bodies[1]) {
		t.Errorf("expected structurally identical payloads apart from the reference:\n%v\n%v",
			bodies[0], bodies[1])
	}
}
