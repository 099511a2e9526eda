package routes

import (
	"context"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/controllers"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// maxBrowserBody bounds candidate-facing JSON requests.
const maxBrowserBody = 64 << 10

type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
}

// RegisterPaymentRoutes mounts the candidate-facing endpoints behind CORS and
// the per-IP limiter. The webhook is mounted bare: gateways call it from
// their own servers and retry on anything but 2xx.
func RegisterPaymentRoutes(ctx context.Context, r *gin.Engine, pc *controllers.PaymentController, opts Options) {
	payments := r.Group("/payments")
	payments.POST("/webhook", pc.Webhook)

	corsConfig := cors.Config{
		AllowOrigins:  opts.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}

	browser := payments.Group("")
	browser.Use(cors.New(corsConfig))
	browser.Use(middleware.RateLimitMiddleware(ctx, opts.RateLimitPerMin))
	browser.Use(middleware.BodyLimit(maxBrowserBody))
	browser.POST("/initialize", pc.Initialize)
	browser.POST("/verify", pc.Verify)
	browser.GET("/receipt", pc.Receipt)
	browser.OPTIONS("/*any", func(c *gin.Context) {})
}
