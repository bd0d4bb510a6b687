package controllers

import (
	"log"
	"net/http"
	"time"

	"go-hotspot/expiry"
	"go-hotspot/web/db"

	"github.com/gin-gonic/gin"
)

const EXPIRY_CHECK_INTERVAL = 2 * time.Minute

// StartExpiryMonitor runs the expiry batch on a timer. Deployments that
// prefer cron run cmd/expiryjob instead; both paths are safe to overlap.
func StartExpiryMonitor() {
	go func() {
		log.Println("Starting expiry monitor...")

		for {
			time.Sleep(EXPIRY_CHECK_INTERVAL)
			n, err := expiry.Run(db.DB, time.Now(), expiry.DefaultBatchSize)
			if err != nil {
				log.Printf("expiry monitor: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expiry monitor: expired %d vouchers", n)
			}
		}
	}()
}

// RunExpiry triggers one expiry batch on demand.
func RunExpiry(c *gin.Context) {
	n, err := expiry.Run(db.DB, time.Now(), expiry.DefaultBatchSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Expiry run failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n})
}
