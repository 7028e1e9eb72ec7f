package controllers

import (
	"net/http"

	"github.com/Kariqs/galio-api/initializers"
	"github.com/gin-gonic/gin"
)

func GetPaymentsForReview(ctx *gin.Context) {
	payments, err := initializers.Orders.PaymentsNeedingReview(ctx.Request.Context())
	if err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"payments": payments})
}

func ReapOrphanOrders(ctx *gin.Context) {
	reaped, err := initializers.Checkout.ReapOrphanOrders(ctx.Request.Context())
	if err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"message":   "Orphan orders cancelled",
		"cancelled": reaped,
	})
}
