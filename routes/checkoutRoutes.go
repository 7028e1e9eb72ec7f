package routes

import (
	"github.com/Kariqs/galio-api/controllers"
	"github.com/Kariqs/galio-api/initializers"
	"github.com/Kariqs/galio-api/middlewares"
	"github.com/gin-gonic/gin"
)

// The client polls every 5 seconds; the burst absorbs a few retries.
const pollBurst = 5

func CheckoutRoutes(server *gin.Engine) {
	pollLimiter := middlewares.NewRateLimiter(initializers.AppConfig.PollRatePerSecond, pollBurst)

	server.POST("/checkout/preview", controllers.PreviewCheckout)
	server.POST("/checkout", controllers.Checkout)
	server.GET("/check-payment-status", pollLimiter.Middleware(), controllers.CheckPaymentStatus)
	server.POST("/mpesa-callback", controllers.MpesaCallback)
}
