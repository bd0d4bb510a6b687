// One-shot expiry batch, invoked by cron or an equivalent scheduler.

package main

import (
	"log"
	"time"

	"go-hotspot/expiry"
	"go-hotspot/utils"
	"go-hotspot/web/db"
)

func init() {
	utils.LoadEnv()
	db.Connect()
	db.Sync()
}

func main() {
	n, err := expiry.Run(db.DB, time.Now(), expiry.DefaultBatchSize)
	if err != nil {
		log.Fatalln("expiry run failed:", err)
	}
	log.Printf("expired %d vouchers", n)
}
