package controllers

import (
	"net/http"

	"github.com/Kariqs/galio-api/initializers"
	"github.com/gin-gonic/gin"
)

func GetDeliveryAreas(ctx *gin.Context) {
	counties, err := initializers.Orders.DeliveryAreas(ctx.Request.Context())
	if err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"counties": counties})
}
