package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/Kariqs/galio-api/initializers"
	"github.com/Kariqs/galio-api/middlewares"
	"github.com/Kariqs/galio-api/mpesa"
	"github.com/Kariqs/galio-api/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxCallbackBytes = 64 << 10

func PreviewCheckout(ctx *gin.Context) {
	var input struct {
		DeliveryAreaID uint   `json:"deliveryAreaId" binding:"required"`
		CouponCode     string `json:"couponCode"`
	}
	if err := ctx.ShouldBindJSON(&input); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	totals, err := initializers.Checkout.PreviewTotals(ctx.Request.Context(), middlewares.GetOwner(ctx), input.DeliveryAreaID, input.CouponCode)
	if err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"totals": totals})
}

func Checkout(ctx *gin.Context) {
	var input struct {
		DeliveryAreaID  uint   `json:"deliveryAreaId" binding:"required"`
		ShippingAddress string `json:"shippingAddress" binding:"required"`
		BillingAddress  string `json:"billingAddress"`
		CouponCode      string `json:"couponCode"`
		Phone           string `json:"phone" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&input); err != nil {
		sendJSONResponse(ctx, http.StatusBadRequest, gin.H{"success": false, "message": msgInvalidInput})
		return
	}

	result, err := initializers.Checkout.Checkout(ctx.Request.Context(), middlewares.GetOwner(ctx), services.CheckoutRequest{
		DeliveryAreaID:  input.DeliveryAreaID,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		CouponCode:      input.CouponCode,
		Phone:           input.Phone,
	})
	if err != nil {
		status, message := errorStatus(ctx, err)
		sendJSONResponse(ctx, status, gin.H{"success": false, "message": message})
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"success":             true,
		"message":             result.CustomerMessage,
		"order_number":        result.Order.Number(),
		"checkout_request_id": result.Payment.CheckoutRequestID,
	})
}

func CheckPaymentStatus(ctx *gin.Context) {
	checkoutRequestID := strings.TrimSpace(ctx.Query("checkout_request_id"))
	if checkoutRequestID == "" {
		sendErrorResponse(ctx, http.StatusBadRequest, "checkout_request_id is required")
		return
	}

	status, err := initializers.Checkout.PaymentStatus(ctx.Request.Context(), checkoutRequestID)
	if err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, status)
}

// MpesaCallback always answers with the accepted envelope. Whatever goes wrong
// here is ours to reconcile, not a reason for the provider to retry.
func MpesaCallback(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxCallbackBytes))
	if err != nil {
		log.Warn().Err(err).Msg("mpesa callback: unreadable body")
		ctx.JSON(http.StatusOK, mpesa.Accepted)
		return
	}

	outcome := initializers.Checkout.HandleCallback(ctx.Request.Context(), payload)
	log.Debug().Str("outcome", string(outcome)).Msg("mpesa callback handled")

	ctx.JSON(http.StatusOK, mpesa.Accepted)
}
