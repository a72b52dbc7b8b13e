package faspay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	legacyCreateEndpoint = "/cvr/300011/10"
	qrisGenerateEndpoint = "/v1.0/qr/qr-mpm-generate"

	// 402 = Permata VA, 1 = closed payment (fixed amount)
	legacyPaymentChannel = "402"
	legacyPayType        = "1"

	billValidity = 24 * time.Hour
)

// ErrGatewayUnavailable marks a non-JSON reply from Faspay. In practice this
// means sandbox or credential misconfiguration, not a transient outage, so
// callers must not blindly retry it.
var ErrGatewayUnavailable = errors.New("faspay: gateway returned non-JSON response, check credentials or enable simulation mode")

// RejectError carries a rejection Faspay stated explicitly. The provider
// wording is surfaced verbatim to the caller.
type RejectError struct {
	Code string
	Desc string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("faspay: request rejected: %s (%s)", e.Desc, e.Code)
}

// PaymentRequest describes one payment attempt. MerchantOrderID must be fresh
// per attempt; it is the idempotency key for the whole flow.
type PaymentRequest struct {
	MerchantOrderID string
	Amount          int64 // IDR minor units
	Description     string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
}

// PaymentInstrument is the normalized result of either creation flow.
type PaymentInstrument struct {
	OrderID     string
	Reference   string // Faspay transaction id
	VANumber    string // legacy VA flow
	RedirectURL string // legacy VA flow
	QRContent   string // QRIS flow
	QRURL       string // QRIS flow
	Expiry      string
	Simulated   bool
}

// Client talks to Faspay using whichever of the two signing schemes the
// endpoint wants: LegacySigner for Debit VA creation, SnapSigner for QRIS.
type Client struct {
	cfg        Config
	legacy     LegacySigner
	snap       SnapSigner
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		cfg:        cfg,
		legacy:     NewLegacySigner(cfg),
		snap:       NewSnapSigner(cfg),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
}

type legacyCreateRequest struct {
	Request        string `json:"request"`
	MerchantID     string `json:"merchant_id"`
	Merchant       string `json:"merchant"`
	BillNo         string `json:"bill_no"`
	BillReff       string `json:"bill_reff"`
	BillDate       string `json:"bill_date"`
	BillExpired    string `json:"bill_expired"`
	BillDesc       string `json:"bill_desc"`
	BillCurrency   string `json:"bill_currency"`
	BillGross      int64  `json:"bill_gross"`
	BillMiscfee    int64  `json:"bill_miscfee"`
	BillTotal      int64  `json:"bill_total"`
	CustNo         string `json:"cust_no"`
	CustName       string `json:"cust_name"`
	PaymentChannel string `json:"payment_channel"`
	PayType        string `json:"pay_type"`
	BankUserID     string `json:"bank_userid"`
	Signature      string `json:"signature"`
}

type legacyCreateResponse struct {
	ResponseCode string `json:"response_code"`
	ResponseDesc string `json:"response_desc"`
	BillNo       string `json:"bill_no"`
	RedirectURL  string `json:"redirect_url"`
	TrxID        string `json:"trx_id"`
}

// CreateVirtualAccount requests a closed-payment VA through the Legacy Debit
// API. Ambiguous failures (timeouts after the request may have been accepted)
// must be resolved with a fresh merchant order id, never by resending this
// one.
func (c *Client) CreateVirtualAccount(ctx context.Context, req PaymentRequest) (*PaymentInstrument, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	now := time.Now()
	expiry := now.Add(billValidity).Format("2006-01-02 15:04:05")

	if c.cfg.SimulationMode {
		return c.simulateVA(req, expiry), nil
	}

	body := legacyCreateRequest{
		Request:        "Informasi Tagihan",
		MerchantID:     c.cfg.MerchantID,
		Merchant:       c.cfg.MerchantID,
		BillNo:         req.MerchantOrderID,
		BillReff:       req.MerchantOrderID,
		BillDate:       now.Format("2006-01-02 15:04:05"),
		BillExpired:    expiry,
		BillDesc:       req.Description,
		BillCurrency:   "IDR",
		BillGross:      req.Amount,
		BillMiscfee:    0,
		BillTotal:      req.Amount,
		CustNo:         req.CustomerPhone,
		CustName:       req.CustomerName,
		PaymentChannel: legacyPaymentChannel,
		PayType:        legacyPayType,
		BankUserID:     c.cfg.UserID,
		Signature:      c.legacy.SignRequest(req.MerchantOrderID),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+legacyCreateEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("faspay: create VA request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readJSONBody(resp)
	if err != nil {
		return nil, err
	}

	var result legacyCreateResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("faspay: decode VA response: %w", err)
	}

	if result.ResponseCode != "00" || result.RedirectURL == "" {
		return nil, &RejectError{Code: result.ResponseCode, Desc: result.ResponseDesc}
	}

	return &PaymentInstrument{
		OrderID:     req.MerchantOrderID,
		Reference:   result.TrxID,
		VANumber:    result.BillNo,
		RedirectURL: result.RedirectURL,
		Expiry:      expiry,
	}, nil
}

type snapAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type snapAdditionalInfo struct {
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	BillDescription string `json:"billDescription"`
	BillDate        string `json:"billDate"`
}

type snapQRISRequest struct {
	PartnerReferenceNo string             `json:"partnerReferenceNo"`
	Amount             snapAmount         `json:"amount"`
	MerchantID         string             `json:"merchantId"`
	StoreLabel         string             `json:"storeLabel"`
	TerminalLabel      string             `json:"terminalLabel"`
	ValidityPeriod     string             `json:"validityPeriod"`
	AdditionalInfo     snapAdditionalInfo `json:"additionalInfo"`
}

type snapQRISResponse struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	ReferenceNo     string `json:"referenceNo"`
	QRContent       string `json:"qrContent"`
	QRCode          string `json:"qrCode"`
	QRURL           string `json:"qrUrl"`
	ValidityPeriod  string `json:"validityPeriod"`
}

// CreateQRIS requests a dynamic MPM QR through the SNAP API.
func (c *Client) CreateQRIS(ctx context.Context, req PaymentRequest) (*PaymentInstrument, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	now := time.Now()
	timestamp := now.Format(time.RFC3339)
	validity := now.Add(billValidity).Format(time.RFC3339)

	if c.cfg.SimulationMode {
		return c.simulateQRIS(req, validity), nil
	}

	body := snapQRISRequest{
		PartnerReferenceNo: req.MerchantOrderID,
		Amount:             snapAmount{Value: fmt.Sprintf("%d.00", req.Amount), Currency: "IDR"},
		MerchantID:         c.cfg.MerchantID,
		StoreLabel:         "OASIS BI PRO",
		TerminalLabel:      "WEB",
		ValidityPeriod:     validity,
		AdditionalInfo: snapAdditionalInfo{
			CustomerName:    req.CustomerName,
			CustomerEmail:   req.CustomerEmail,
			CustomerPhone:   req.CustomerPhone,
			BillDescription: req.Description,
			BillDate:        timestamp,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	// the signature covers the exact bytes sent, so sign the marshaled payload
	signature := c.snap.SignRequest(SigningContext{
		Method:    http.MethodPost,
		Path:      qrisGenerateEndpoint,
		Timestamp: timestamp,
		Body:      payload,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+qrisGenerateEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-TIMESTAMP", timestamp)
	httpReq.Header.Set("X-SIGNATURE", signature)
	httpReq.Header.Set("ORIGIN", c.cfg.Origin)
	httpReq.Header.Set("X-PARTNER-ID", c.cfg.PartnerID)
	httpReq.Header.Set("X-EXTERNAL-ID", NewExternalID())
	httpReq.Header.Set("CHANNEL-ID", c.cfg.ChannelID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("faspay: create QRIS request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readJSONBody(resp)
	if err != nil {
		return nil, err
	}

	var result snapQRISResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("faspay: decode QRIS response: %w", err)
	}

	if result.ResponseCode != "2002500" {
		return nil, &RejectError{Code: result.ResponseCode, Desc: result.ResponseMessage}
	}

	qrContent := result.QRContent
	if qrContent == "" {
		qrContent = result.QRCode
	}

	reference := result.ReferenceNo
	if reference == "" {
		reference = req.MerchantOrderID
	}

	expiry := result.ValidityPeriod
	if expiry == "" {
		expiry = validity
	}

	return &PaymentInstrument{
		OrderID:   req.MerchantOrderID,
		Reference: reference,
		QRContent: qrContent,
		QRURL:     result.QRURL,
		Expiry:    expiry,
	}, nil
}

func (c *Client) simulateVA(req PaymentRequest, expiry string) *PaymentInstrument {
	tail := req.MerchantOrderID
	if len(tail) > 12 {
		tail = tail[len(tail)-12:]
	}
	vaNumber := "8770" + tail
	reference := fmt.Sprintf("TRX-MOCK-%d", time.Now().UnixMilli())

	log.Printf("faspay: SIMULATION MODE, mock VA %s for %s (not a real transaction)", vaNumber, req.MerchantOrderID)

	return &PaymentInstrument{
		OrderID:     req.MerchantOrderID,
		Reference:   reference,
		VANumber:    vaNumber,
		RedirectURL: "https://debit-sandbox.faspay.co.id/payment/mock/" + vaNumber,
		Expiry:      expiry,
		Simulated:   true,
	}
}

func (c *Client) simulateQRIS(req PaymentRequest, expiry string) *PaymentInstrument {
	reference := fmt.Sprintf("TRX-MOCK-%d", time.Now().UnixMilli())

	log.Printf("faspay: SIMULATION MODE, mock QR for %s (not a real transaction)", req.MerchantOrderID)

	return &PaymentInstrument{
		OrderID:   req.MerchantOrderID,
		Reference: reference,
		QRContent: "00020101SIMULATED" + req.MerchantOrderID,
		QRURL:     "https://debit-sandbox.faspay.co.id/qr/mock/" + req.MerchantOrderID,
		Expiry:    expiry,
		Simulated: true,
	}
}

// readJSONBody returns the raw body, mapping non-JSON replies to
// ErrGatewayUnavailable. Faspay answers HTML when credentials have no API
// access, which is a configuration fault rather than a transient one.
func readJSONBody(resp *http.Response) ([]byte, error) {
	contentType := resp.Header.Get("Content-Type")
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if !strings.Contains(contentType, "application/json") {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		log.Printf("faspay: non-JSON response (status %d): %s", resp.StatusCode, snippet)
		return nil, ErrGatewayUnavailable
	}
	return data, nil
}
