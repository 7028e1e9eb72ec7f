package routes

import (
	"github.com/Kariqs/galio-api/controllers"
	"github.com/Kariqs/galio-api/middlewares"
	"github.com/gin-gonic/gin"
)

func AdminRoutes(server *gin.Engine) {
	admin := server.Group("/admin", middlewares.RequireAdmin())
	{
		admin.GET("/payments/review", controllers.GetPaymentsForReview)
		admin.POST("/orders/reap", controllers.ReapOrphanOrders)
	}
}
