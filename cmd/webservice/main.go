package main

import (
	stlog "log"
	"os"
	"strconv"
	"time"

	"go-hotspot/payment"
	"go-hotspot/utils"
	"go-hotspot/web/controllers"
	"go-hotspot/web/db"
	"go-hotspot/web/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func init() {
	utils.LoadEnv()
	db.Connect()
	db.Sync()
}

func main() {
	port := os.Getenv("GIN_PORT")
	if port == "" {
		port = "8080"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	globalLimiter, err := middleware.NewRateLimiter(redisAddr, os.Getenv("REDIS_PASSWORD"), redisDB, 15, time.Minute) // 15 requests/min/IP
	if err != nil {
		stlog.Fatalln("Error connecting to redis:", err)
	}
	defer globalLimiter.Close()

	controllers.StartDeviceMonitor()
	controllers.StartExpiryMonitor()
	payment.StartReconcilePoller(db.DB, time.Minute)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// customer-facing
	r.POST("/verify", globalLimiter.Middleware(), controllers.Verify)
	r.POST("/activate", globalLimiter.Middleware(), controllers.Activate)
	r.GET("/voucher/:reference/qr", globalLimiter.Middleware(), controllers.VoucherQR)
	r.GET("/payment/status/:transaction_id", globalLimiter.Middleware(), controllers.GetPaymentStatus)

	// collaborators
	r.POST("/payment/webhook", controllers.PaymentWebhook)
	r.POST("/device/heartbeat", controllers.DeviceHeartbeat)

	// admin
	r.POST("/admin/login", globalLimiter.Middleware(), controllers.AdminLogin)
	admin := r.Group("/admin", middleware.RequireAdmin)
	admin.POST("/vouchers", controllers.GenerateVouchers)
	admin.GET("/vouchers", controllers.ListVouchers)
	admin.POST("/vouchers/:id/cancel", controllers.CancelVoucher)
	admin.POST("/devices/:id/sync", controllers.SyncDevice)
	admin.POST("/expiry/run", controllers.RunExpiry)
	admin.GET("/status", controllers.Status)

	r.Run(":" + port)
}
