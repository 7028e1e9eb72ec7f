package routes

import (
	"github.com/Kariqs/galio-api/controllers"
	"github.com/gin-gonic/gin"
)

func DefaultRoutes(server *gin.Engine) {
	server.GET("/", controllers.GetHome)
	server.GET("/delivery-areas", controllers.GetDeliveryAreas)
}
