package routes

import (
	"github.com/Kariqs/galio-api/controllers"
	"github.com/gin-gonic/gin"
)

func OrderRoutes(server *gin.Engine) {
	server.GET("/orders", controllers.GetOrders)
	server.GET("/order-confirmation/:orderNumber", controllers.GetOrderConfirmation)
}
