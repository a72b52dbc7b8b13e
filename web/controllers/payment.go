package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"oasis-billing/billing"
	"oasis-billing/billing/db"
	"oasis-billing/faspay"
	"oasis-billing/pkg/metrics"
	"oasis-billing/web/email"
)

var (
	gatewayCfg faspay.Config
	gateway    *faspay.Client
	store      *db.Store
	processor  *billing.Processor
)

// Setup wires the gateway client and callback processor. Call once after
// db.Connect, before registering routes.
func Setup(cfg faspay.Config) {
	gatewayCfg = cfg
	gateway = faspay.NewClient(cfg, nil)
	store = db.DefaultStore()
	processor = billing.NewProcessor(faspay.NewLegacySigner(cfg), store, store, cfg.AllowFallbackLookup)
}

func Checkout(c *gin.Context) {
	user, ok := c.Get("user")
	if !ok {
		c.JSON(401, gin.H{"error": "Unauthorized"})
		return
	}
	userinfo := user.(db.User)

	var req struct {
		Plan   string `json:"plan"`
		Method string `json:"method"` // va, qris
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	plan, ok := billing.PlanByID(req.Plan)
	if !ok {
		c.JSON(400, gin.H{"error": "Invalid plan"})
		return
	}

	method := req.Method
	if method == "" {
		method = "va"
	}
	if method != "va" && method != "qris" {
		c.JSON(400, gin.H{"error": "Unsupported payment method"})
		return
	}

	// Fresh order id per attempt. A failed attempt is never retried under
	// the same id.
	orderID := faspay.NewMerchantOrderID(plan.ID)

	tx := &db.Transaction{
		MerchantOrderID: orderID,
		UserID:          userinfo.ID,
		PlanID:          plan.ID,
		Amount:          plan.Price,
		Currency:        plan.Currency,
		Status:          db.StatusPending,
		Method:          method,
		Simulated:       gatewayCfg.SimulationMode,
	}
	if err := store.CreatePendingTransaction(c.Request.Context(), tx); err != nil {
		c.JSON(500, gin.H{"error": "Failed to create payment"})
		return
	}

	payReq := faspay.PaymentRequest{
		MerchantOrderID: orderID,
		Amount:          plan.Price,
		Description:     plan.Name,
		CustomerName:    userinfo.Name,
		CustomerEmail:   userinfo.Email,
		CustomerPhone:   userinfo.Phone,
	}

	var (
		inst *faspay.PaymentInstrument
		err  error
		flow string
	)

	started := time.Now()
	if method == "qris" {
		flow = "qris"
		inst, err = gateway.CreateQRIS(c.Request.Context(), payReq)
	} else {
		flow = "va"
		inst, err = gateway.CreateVirtualAccount(c.Request.Context(), payReq)
	}
	metrics.ObserveGatewayDuration(flow, time.Since(started).Seconds())

	if err != nil {
		var rej *faspay.RejectError
		if errors.As(err, &rej) {
			metrics.IncGatewayRequest(flow, "rejected")
			if _, uerr := store.UpdateStatusIf(c.Request.Context(), orderID, db.StatusPending, db.StatusFailed, ""); uerr != nil {
				log.Printf("checkout: failed to mark %s failed: %v", orderID, uerr)
			}
			c.JSON(400, gin.H{"error": rej.Desc, "order_id": orderID})
			return
		}

		metrics.IncGatewayRequest(flow, "error")
		log.Printf("checkout: gateway call failed for %s: %v", orderID, err)
		if errors.Is(err, faspay.ErrGatewayUnavailable) {
			c.JSON(502, gin.H{"error": "Payment gateway unavailable"})
			return
		}
		c.JSON(502, gin.H{"error": "Failed to reach payment gateway"})
		return
	}

	metrics.IncGatewayRequest(flow, "ok")

	if inst.Reference != "" {
		db.DB.Model(&db.Transaction{}).Where("merchant_order_id = ?", orderID).
			Update("gateway_reference", inst.Reference)
	}

	reply := gin.H{
		"order_id": orderID,
		"plan":     plan.ID,
		"amount":   plan.Price,
		"currency": plan.Currency,
		"method":   method,
		"expiry":   inst.Expiry,
	}
	if inst.Simulated {
		reply["simulated"] = true
	}

	if method == "qris" {
		reply["qr_content"] = inst.QRContent
		if inst.QRURL != "" {
			reply["qr_url"] = inst.QRURL
		}
		// inline PNG so web clients can render without another round trip
		if png, qerr := qrcode.Encode(inst.QRContent, qrcode.Medium, 256); qerr == nil {
			reply["qr_png"] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
		}
	} else {
		reply["va_number"] = inst.VANumber
		reply["redirect_url"] = inst.RedirectURL
	}

	c.JSON(200, reply)
}

func callbackAck(n billing.Notification, desc string) gin.H {
	return gin.H{
		"response":      "Payment Notification",
		"trx_id":        n.TrxID,
		"merchant_id":   n.MerchantID,
		"bill_no":       n.BillNo,
		"response_code": "00",
		"response_desc": desc,
		"response_date": time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
}

// Callback receives Faspay payment notifications. It is deliberately outside
// both auth middleware and the rate limiter: the signature over the body is
// the only authentication, and dropping a notification means waiting for the
// gateway's next retry.
func Callback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(400, gin.H{"error": "Failed to read body"})
		return
	}

	var n billing.Notification
	if err := json.Unmarshal(raw, &n); err != nil || n.BillNo == "" {
		c.JSON(400, gin.H{"error": "Malformed notification"})
		return
	}
	n.RawBody = raw

	out := processor.Handle(c.Request.Context(), n)

	switch out.Kind {
	case billing.OutcomeApplied:
		switch out.Status {
		case db.StatusCompleted:
			go sendReceipt(n.BillNo)
		case db.StatusFailed, db.StatusExpired, db.StatusCancelled:
			go sendFailureNotice(n.BillNo, out.Status)
		}
		c.JSON(200, callbackAck(n, "Sukses"))
	case billing.OutcomeIgnored:
		// already settled or still in process, ack so the gateway stops retrying
		c.JSON(200, callbackAck(n, "Sukses"))
	default:
		switch out.Reason {
		case billing.ReasonInvalidSignature:
			c.JSON(401, gin.H{"error": "Invalid signature"})
		case billing.ReasonStorageConflict:
			// 5xx so the gateway retries the delivery
			c.JSON(500, gin.H{"error": "Temporary failure, retry"})
		default:
			c.JSON(400, gin.H{"error": out.Reason})
		}
	}
}

func sendReceipt(orderID string) {
	tx, err := store.FindByOrderID(context.Background(), orderID)
	if err != nil {
		return
	}

	var user db.User
	db.DB.First(&user, tx.UserID)
	if user.ID == 0 {
		return
	}

	plan, _ := billing.PlanByID(tx.PlanID)
	if err := email.SendPaymentReceipt(user.Email, orderID, plan.Name, tx.Amount); err != nil {
		log.Printf("callback: receipt email to %s failed: %v", user.Email, err)
	}
}

func sendFailureNotice(orderID string, status string) {
	tx, err := store.FindByOrderID(context.Background(), orderID)
	if err != nil {
		return
	}

	var user db.User
	db.DB.First(&user, tx.UserID)
	if user.ID == 0 {
		return
	}

	if err := email.SendPaymentFailed(user.Email, orderID, status); err != nil {
		log.Printf("callback: failure email to %s failed: %v", user.Email, err)
	}
}

func GetPaymentStatus(c *gin.Context) {
	user, ok := c.Get("user")
	if !ok {
		c.JSON(401, gin.H{"error": "Unauthorized"})
		return
	}

	orderID := c.Param("order_id")

	var tx db.Transaction
	if err := db.DB.Where("merchant_order_id = ? AND user_id = ?", orderID, user.(db.User).ID).
		First(&tx).Error; err != nil {
		c.JSON(404, gin.H{"error": "Payment not found"})
		return
	}

	c.JSON(200, gin.H{
		"order_id":  tx.MerchantOrderID,
		"status":    tx.Status,
		"plan":      tx.PlanID,
		"amount":    tx.Amount,
		"currency":  tx.Currency,
		"method":    tx.Method,
		"reference": tx.GatewayReference,
	})
}

func ListPayments(c *gin.Context) {
	user, ok := c.Get("user")
	if !ok {
		c.JSON(401, gin.H{"error": "Unauthorized"})
		return
	}

	var txs []db.Transaction
	if err := db.DB.Where("user_id = ?", user.(db.User).ID).
		Order("created_at desc").Find(&txs).Error; err != nil {
		c.JSON(500, gin.H{"error": "Failed to fetch payments"})
		return
	}

	c.JSON(200, gin.H{"payments": txs})
}
