package controllers

import (
	"net/http"
	"time"

	"go-hotspot/payment"
	"go-hotspot/web/db"

	"github.com/gin-gonic/gin"
)

type webhookPayload struct {
	TransactionID  string `json:"transaction_id"`
	ResultCode     int    `json:"result_code"` // 0 = completed
	ResultDesc     string `json:"result_desc"`
	Amount         int    `json:"amount"`
	Currency       string `json:"currency"`
	PayerReference string `json:"payer_reference"` // payer phone
	AccountNumber  string `json:"account_number"`  // the voucher payment reference
	Method         string `json:"method"`
	Timestamp      string `json:"timestamp"`
}

// PaymentWebhook accepts provider confirmations. Deliveries can arrive
// duplicated or out of order; dispatch is idempotent on transaction_id,
// so this handler acknowledges anything it could parse.
func PaymentWebhook(c *gin.Context) {
	var body webhookPayload
	if err := c.BindJSON(&body); err != nil || body.TransactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	ts, err := time.Parse(time.RFC3339, body.Timestamp)
	if err != nil {
		ts = time.Now()
	}

	var evt payment.Event
	if body.ResultCode == 0 {
		method := body.Method
		if method == "" {
			method = "mobile_money"
		}
		evt = payment.Confirmation{
			TxID:       body.TransactionID,
			Amount:     body.Amount,
			Currency:   body.Currency,
			PayerPhone: body.PayerReference,
			Reference:  body.AccountNumber,
			Method:     method,
			Timestamp:  ts,
		}
	} else {
		evt = payment.Failure{
			TxID:      body.TransactionID,
			Reason:    body.ResultDesc,
			Timestamp: ts,
		}
	}

	if err := payment.Dispatch(db.DB, evt); err != nil {
		// Signal the provider to redeliver; dispatch is safe to repeat.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Accepted"})
}

func GetPaymentStatus(c *gin.Context) {
	var p db.Payment
	if err := db.DB.Where("transaction_id = ?", c.Param("transaction_id")).First(&p).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": p.TransactionID,
		"status":         p.Status,
		"reconciled":     p.Reconciled,
	})
}
