package main

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oasis-billing/billing/db"
	"oasis-billing/faspay"
	"oasis-billing/utils"
	"oasis-billing/web/controllers"
	"oasis-billing/web/middleware"
)

func init() {
	utils.LoadEnv()
	db.Connect()
	db.Sync()
}

func main() {
	cfg := faspay.ConfigFromEnv()
	controllers.Setup(cfg)

	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{utils.Getenv("WEB_ORIGIN", "*")}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	if corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowOrigins = nil
	}
	r.Use(cors.New(corsConfig))

	globalLimiter := middleware.NewRateLimiter(30, time.Minute) // 30 requests/min/IP
	globalLimiter.StartCleanup(10 * time.Minute)

	r.POST("/signup", globalLimiter.Middleware(), controllers.Signup)
	r.POST("/login", globalLimiter.Middleware(), controllers.Login)
	r.GET("/user", globalLimiter.Middleware(), middleware.RequireAuth, controllers.User)
	r.GET("/plans", globalLimiter.Middleware(), controllers.Plans)

	r.POST("/checkout", globalLimiter.Middleware(), middleware.RequireAuth, controllers.Checkout)
	r.GET("/payment/status/:order_id", globalLimiter.Middleware(), middleware.RequireAuth, controllers.GetPaymentStatus)
	r.GET("/payment/list", globalLimiter.Middleware(), middleware.RequireAuth, controllers.ListPayments)

	// gateway notifications carry their own signature; no auth, no rate limit
	r.POST("/faspay/callback", controllers.Callback)

	// Admin routes
	r.POST("/admin/setplan", middleware.AdminAuth, controllers.SetPlan)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	port := os.Getenv("GIN_PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
