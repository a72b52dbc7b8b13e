package billing

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"oasis-billing/billing/db"
	"oasis-billing/faspay"
	"oasis-billing/pkg/metrics"
)

// Notification is the Legacy Debit callback body. Untrusted until the
// signature over bill_no + payment_status_code checks out.
type Notification struct {
	TrxID             string      `json:"trx_id"`
	MerchantID        string      `json:"merchant_id"`
	BillNo            string      `json:"bill_no"`
	BillTotal         json.Number `json:"bill_total"`
	PaymentStatusCode string      `json:"payment_status_code"`
	PaymentStatusDesc string      `json:"payment_status_desc"`
	PaymentDate       string      `json:"payment_date"`
	Signature         string      `json:"signature"`

	// RawBody keeps the exact bytes received for the audit trail.
	RawBody []byte `json:"-"`
}

type OutcomeKind int

const (
	OutcomeApplied OutcomeKind = iota
	OutcomeIgnored
	OutcomeRejected
)

// Outcome is the processing result for one notification. Ignored is not an
// error: re-deliveries of settled bills land there.
type Outcome struct {
	Kind   OutcomeKind
	Status string // transaction status for Applied
	Reason string
}

func applied(status string) Outcome  { return Outcome{Kind: OutcomeApplied, Status: status} }
func ignored(reason string) Outcome  { return Outcome{Kind: OutcomeIgnored, Reason: reason} }
func rejected(reason string) Outcome { return Outcome{Kind: OutcomeRejected, Reason: reason} }

const (
	ReasonInvalidSignature    = "invalid signature"
	ReasonUnknownStatusCode   = "unknown status code"
	ReasonTransactionNotFound = "transaction not found"
	ReasonAlreadyTerminal     = "already terminal"
	ReasonStillInProcess      = "payment still in process"
	ReasonStorageConflict     = "storage conflict"
)

// TransactionStore is the slice of persistence the processor drives.
type TransactionStore interface {
	FindByOrderID(ctx context.Context, orderID string) (*db.Transaction, error)
	UpdateStatusIf(ctx context.Context, orderID, expected, next, gatewayRef string) (bool, error)
	AppendLog(ctx context.Context, entry db.TransactionLog) error
	FirstAdminUserID(ctx context.Context) (uint, error)
}

// SubscriptionStore applies the billing side effects of a settled payment.
type SubscriptionStore interface {
	ActivatePlan(ctx context.Context, userID uint, planID, gatewayRef string, periodStart, periodEnd time.Time) error
	FlagReversal(ctx context.Context, userID uint) error
}

// Processor drives the transaction state machine from verified gateway
// notifications. All exclusivity lives in the store's conditional update;
// the processor itself holds no state and is safe for concurrent use.
type Processor struct {
	verifier      faspay.CallbackVerifier
	txs           TransactionStore
	subs          SubscriptionStore
	allowFallback bool
	now           func() time.Time
}

func NewProcessor(verifier faspay.CallbackVerifier, txs TransactionStore, subs SubscriptionStore, allowFallback bool) *Processor {
	return &Processor{
		verifier:      verifier,
		txs:           txs,
		subs:          subs,
		allowFallback: allowFallback,
		now:           time.Now,
	}
}

// targetStatus maps a gateway status code to the transaction status it
// settles to. ok is false for codes that settle nothing.
func targetStatus(code string) (status string, ok bool) {
	switch code {
	case faspay.StatusSuccess:
		return db.StatusCompleted, true
	case faspay.StatusFailed:
		return db.StatusFailed, true
	case faspay.StatusExpired:
		return db.StatusExpired, true
	case faspay.StatusCancelled:
		return db.StatusCancelled, true
	case faspay.StatusReversal:
		return db.StatusReversed, true
	default:
		return "", false
	}
}

// PeriodEnd returns the subscription period end for a period starting at
// start: exactly one calendar month later, with Go's date normalization
// (Jan 31 + 1 month lands in early March).
func PeriodEnd(start time.Time) time.Time {
	return start.AddDate(0, 1, 0)
}

// Handle verifies, resolves, and applies one notification. It never panics
// past the caller and always returns a well-formed outcome so the HTTP layer
// can acknowledge the gateway.
func (p *Processor) Handle(ctx context.Context, n Notification) Outcome {
	if !p.verifier.VerifyCallback(n.BillNo, n.PaymentStatusCode, n.Signature) {
		log.Printf("callback: invalid signature for bill_no=%s status=%s", n.BillNo, n.PaymentStatusCode)
		metrics.IncCallback("rejected", n.PaymentStatusCode)
		return rejected(ReasonInvalidSignature)
	}

	tx, err := p.txs.FindByOrderID(ctx, n.BillNo)
	if err != nil {
		return p.handleMissingTransaction(ctx, n, err)
	}

	target, known := targetStatus(n.PaymentStatusCode)

	if db.IsTerminalStatus(tx.Status) {
		// completed -> reversed is the one allowed exit from a terminal status
		if !(known && target == db.StatusReversed && tx.Status == db.StatusCompleted) {
			metrics.IncCallback("ignored", n.PaymentStatusCode)
			return ignored(ReasonAlreadyTerminal)
		}
	}

	switch n.PaymentStatusCode {
	case faspay.StatusUnprocessed, faspay.StatusInProcess:
		metrics.IncCallback("ignored", n.PaymentStatusCode)
		return ignored(ReasonStillInProcess)
	}
	if !known {
		log.Printf("callback: unknown payment_status_code=%q for bill_no=%s, possible protocol drift", n.PaymentStatusCode, n.BillNo)
		metrics.IncCallback("rejected", n.PaymentStatusCode)
		return rejected(ReasonUnknownStatusCode)
	}

	expected := db.StatusPending
	if target == db.StatusReversed {
		if tx.Status != db.StatusCompleted {
			metrics.IncCallback("ignored", n.PaymentStatusCode)
			return ignored("no completed payment to reverse")
		}
		expected = db.StatusCompleted
	}

	ok, err := p.txs.UpdateStatusIf(ctx, n.BillNo, expected, target, n.TrxID)
	if err != nil {
		log.Printf("callback: conditional update failed for bill_no=%s: %v", n.BillNo, err)
		metrics.IncCallback("rejected", n.PaymentStatusCode)
		return rejected(ReasonStorageConflict)
	}
	if !ok {
		// lost the race: re-read once and retry the cycle before giving up
		fresh, err := p.txs.FindByOrderID(ctx, n.BillNo)
		if err == nil && db.IsTerminalStatus(fresh.Status) {
			metrics.IncCallback("ignored", n.PaymentStatusCode)
			return ignored(ReasonAlreadyTerminal)
		}
		ok, err = p.txs.UpdateStatusIf(ctx, n.BillNo, expected, target, n.TrxID)
		if err != nil || !ok {
			metrics.IncCallback("rejected", n.PaymentStatusCode)
			return rejected(ReasonStorageConflict)
		}
	}

	p.appendLog(ctx, n, expected, target)

	switch target {
	case db.StatusCompleted:
		start := p.now()
		if err := p.subs.ActivatePlan(ctx, tx.UserID, tx.PlanID, n.TrxID, start, PeriodEnd(start)); err != nil {
			// the transition is already durable; never unwound
			log.Printf("callback: subscription activation failed for bill_no=%s user=%d: %v", n.BillNo, tx.UserID, err)
		}
	case db.StatusReversed:
		if err := p.subs.FlagReversal(ctx, tx.UserID); err != nil {
			log.Printf("callback: reversal flag failed for bill_no=%s user=%d: %v", n.BillNo, tx.UserID, err)
		}
	}

	metrics.IncCallback("applied", n.PaymentStatusCode)
	return applied(target)
}

// handleMissingTransaction is the documented workaround for callbacks whose
// order id resolves to nothing: attribute the payment to the first admin
// user. Degraded mode, logged and counted every time.
func (p *Processor) handleMissingTransaction(ctx context.Context, n Notification, findErr error) Outcome {
	if findErr != db.ErrTransactionNotFound {
		log.Printf("callback: transaction lookup failed for bill_no=%s: %v", n.BillNo, findErr)
		metrics.IncCallback("rejected", n.PaymentStatusCode)
		return rejected(ReasonTransactionNotFound)
	}

	if !p.allowFallback || n.PaymentStatusCode != faspay.StatusSuccess {
		log.Printf("callback: no transaction for bill_no=%s (status=%s)", n.BillNo, n.PaymentStatusCode)
		metrics.IncCallback("rejected", n.PaymentStatusCode)
		return rejected(ReasonTransactionNotFound)
	}

	userID, err := p.txs.FirstAdminUserID(ctx)
	if err != nil {
		log.Printf("callback: fallback lookup failed for bill_no=%s: %v", n.BillNo, err)
		metrics.IncCallback("rejected", n.PaymentStatusCode)
		return rejected(ReasonTransactionNotFound)
	}

	log.Printf("WARNING callback: degraded-mode fallback, attributing bill_no=%s to first admin user %d", n.BillNo, userID)
	metrics.IncFallback()

	plan, ok := PlanFromOrderID(n.BillNo)
	if !ok {
		metrics.IncCallback("rejected", n.PaymentStatusCode)
		return rejected(ReasonTransactionNotFound)
	}

	start := p.now()
	if err := p.subs.ActivatePlan(ctx, userID, plan.ID, n.TrxID, start, PeriodEnd(start)); err != nil {
		log.Printf("callback: fallback activation failed for bill_no=%s: %v", n.BillNo, err)
		metrics.IncCallback("rejected", n.PaymentStatusCode)
		return rejected(ReasonStorageConflict)
	}

	p.appendLog(ctx, n, "", db.StatusCompleted)
	metrics.IncCallback("applied_fallback", n.PaymentStatusCode)
	return applied(db.StatusCompleted)
}

func (p *Processor) appendLog(ctx context.Context, n Notification, from, to string) {
	amount, _ := n.BillTotal.Int64()
	err := p.txs.AppendLog(ctx, db.TransactionLog{
		MerchantOrderID:  n.BillNo,
		FromStatus:       from,
		ToStatus:         to,
		StatusCode:       n.PaymentStatusCode,
		GatewayReference: n.TrxID,
		Amount:           amount,
		RawBody:          string(n.RawBody),
	})
	if err != nil {
		// audit trail is best-effort, the transition stands
		log.Printf("WARNING callback: audit log append failed for bill_no=%s: %v", n.BillNo, err)
	}
}
