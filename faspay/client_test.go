package faspay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// failTransport fails the test if any request goes out.
type failTransport struct{ t *testing.T }

func (ft failTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ft.t.Errorf("unexpected network call to %s", r.URL)
	return nil, errors.New("network disabled")
}

func testClient(t *testing.T, serverURL string, simulation bool) *Client {
	cfg := testConfig
	cfg.BaseURL = serverURL
	cfg.Origin = "www.oasis-bi-pro.web.id"
	cfg.SimulationMode = simulation

	httpClient := &http.Client{}
	if serverURL == "" {
		httpClient.Transport = failTransport{t}
	}
	return NewClient(cfg, httpClient)
}

func TestCreateVirtualAccountSuccess(t *testing.T) {
	var gotBody legacyCreateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != legacyCreateEndpoint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response_code": "00",
			"response_desc": "Success",
			"bill_no":       "8770123456789012",
			"redirect_url":  "https://debit-sandbox.faspay.co.id/pws/100003/xxx",
			"trx_id":        "3185xxxx",
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL, false)
	inst, err := client.CreateVirtualAccount(context.Background(), PaymentRequest{
		MerchantOrderID: "OASIS-STARTER-1700000000000-TEST",
		Amount:          99000,
		Description:     "Starter Plan - Monthly",
		CustomerName:    "Budi",
		CustomerPhone:   "08123456789",
	})
	if err != nil {
		t.Fatal(err)
	}

	if inst.VANumber != "8770123456789012" || inst.Reference != "3185xxxx" {
		t.Errorf("unexpected instrument: %+v", inst)
	}
	if inst.Simulated {
		t.Error("real responses must not be marked simulated")
	}

	// the request body must carry the legacy request signature
	signer := NewLegacySigner(testConfig)
	if gotBody.Signature != signer.SignRequest("OASIS-STARTER-1700000000000-TEST") {
		t.Errorf("bad request signature: %s", gotBody.Signature)
	}
	if gotBody.BillTotal != 99000 || gotBody.PaymentChannel != "402" || gotBody.PayType != "1" {
		t.Errorf("unexpected body fields: %+v", gotBody)
	}
}

func TestCreateVirtualAccountRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response_code": "01",
			"response_desc": "Merchant tidak terdaftar",
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL, false)
	_, err := client.CreateVirtualAccount(context.Background(), PaymentRequest{MerchantOrderID: "OASIS-STARTER-1-A", Amount: 99000})

	var reject *RejectError
	if !errors.As(err, &reject) {
		t.Fatalf("expected RejectError, got %v", err)
	}
	if reject.Desc != "Merchant tidak terdaftar" {
		t.Errorf("provider reason must be surfaced verbatim, got %q", reject.Desc)
	}
}

func TestCreateVirtualAccountNonJSONIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>403 Forbidden</html>"))
	}))
	defer server.Close()

	client := testClient(t, server.URL, false)
	_, err := client.CreateVirtualAccount(context.Background(), PaymentRequest{MerchantOrderID: "OASIS-STARTER-1-A", Amount: 99000})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestCreateQRISSuccessSignsRequest(t *testing.T) {
	signer := NewSnapSigner(testConfig)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		for _, h := range []string{"X-TIMESTAMP", "X-SIGNATURE", "X-PARTNER-ID", "X-EXTERNAL-ID", "CHANNEL-ID", "ORIGIN"} {
			if r.Header.Get(h) == "" {
				t.Errorf("missing header %s", h)
			}
		}

		// the signature must verify against the exact bytes received
		mac := hmac512Check(signer, SigningContext{
			Method:    "POST",
			Path:      qrisGenerateEndpoint,
			Timestamp: r.Header.Get("X-TIMESTAMP"),
			Body:      body,
		}, r.Header.Get("X-SIGNATURE"))
		if !mac {
			t.Error("X-SIGNATURE does not match the received body")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"responseCode":    "2002500",
			"responseMessage": "Successful",
			"referenceNo":     "QR-REF-1",
			"qrContent":       "00020101021226...",
			"qrUrl":           "https://debit-sandbox.faspay.co.id/qr/1",
			"validityPeriod":  "2025-01-01T00:00:00+07:00",
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL, false)
	inst, err := client.CreateQRIS(context.Background(), PaymentRequest{
		MerchantOrderID: "OASIS-PROFESSIONAL-1700000000000-QRTEST",
		Amount:          299000,
		Description:     "Professional Plan - Monthly",
		CustomerName:    "Sari",
		CustomerEmail:   "sari@example.com",
		CustomerPhone:   "08123456780",
	})
	if err != nil {
		t.Fatal(err)
	}
	if inst.QRContent == "" || inst.Reference != "QR-REF-1" {
		t.Errorf("unexpected instrument: %+v", inst)
	}
}

func hmac512Check(s SnapSigner, ctx SigningContext, signature string) bool {
	return s.SignRequest(ctx) == signature
}

func TestCreateQRISRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"responseCode":    "4002500",
			"responseMessage": "Invalid Field Format",
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL, false)
	_, err := client.CreateQRIS(context.Background(), PaymentRequest{MerchantOrderID: "OASIS-PRO-1-B", Amount: 299000})

	var reject *RejectError
	if !errors.As(err, &reject) {
		t.Fatalf("expected RejectError, got %v", err)
	}
	if reject.Code != "4002500" {
		t.Errorf("unexpected code %s", reject.Code)
	}
}

func TestSimulationModeNeverCallsNetwork(t *testing.T) {
	client := testClient(t, "", true) // failTransport trips on any request

	inst, err := client.CreateVirtualAccount(context.Background(), PaymentRequest{
		MerchantOrderID: "OASIS-STARTER-1700000000000-SIMTST",
		Amount:          99000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !inst.Simulated {
		t.Error("simulation results must be marked simulated")
	}
	if !strings.HasPrefix(inst.VANumber, "8770") {
		t.Errorf("unexpected mock VA: %s", inst.VANumber)
	}
	if !strings.HasPrefix(inst.Reference, "TRX-MOCK-") {
		t.Errorf("unexpected mock reference: %s", inst.Reference)
	}

	qr, err := client.CreateQRIS(context.Background(), PaymentRequest{
		MerchantOrderID: "OASIS-STARTER-1700000000000-SIMQRS",
		Amount:          99000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !qr.Simulated || qr.QRContent == "" {
		t.Errorf("unexpected mock QR instrument: %+v", qr)
	}
}
