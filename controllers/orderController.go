package controllers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/Kariqs/galio-api/initializers"
	"github.com/Kariqs/galio-api/middlewares"
	"github.com/gin-gonic/gin"
)

func GetOrders(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "15"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 15
	}

	orders, count, err := initializers.Orders.ListOrders(ctx.Request.Context(), middlewares.GetOwner(ctx), page, limit)
	if err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"orders": orders,
		"metadata": gin.H{
			"currentPage": page,
			"limit":       limit,
			"total":       count,
			"totalPages":  int(math.Ceil(float64(count) / float64(limit))),
		},
	})
}

func GetOrderConfirmation(ctx *gin.Context) {
	order, err := initializers.Orders.GetOrderByNumber(ctx.Request.Context(), middlewares.GetOwner(ctx), ctx.Param("orderNumber"))
	if err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"order": order})
}
