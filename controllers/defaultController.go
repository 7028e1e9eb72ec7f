package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func GetHome(ctx *gin.Context) {
	message := `Welcome to Galio API. Enjoy seamless interaction with this API.

The following are the endpoints for this API:

CART
- GET "/cart" - Get the current cart
- POST "/cart/items" - Add a product to the cart
- PATCH "/cart/items/:itemId" - Change a cart line quantity
- DELETE "/cart/items/:itemId" - Remove a cart line

CHECKOUT
- GET "/delivery-areas" - List counties and delivery areas with shipping fees
- POST "/checkout/preview" - Price the cart for a delivery area and coupon
- POST "/checkout" - Place the order and send the M-Pesa payment prompt
- GET "/check-payment-status?checkout_request_id=" - Poll the payment result
- POST "/mpesa-callback" - M-Pesa result notification

ORDER
- GET "/orders" - Order history
- GET "/order-confirmation/:orderNumber" - Order details

ADMIN
- GET "/admin/payments/review" - Payments needing manual reconciliation
- POST "/admin/orders/reap" - Cancel abandoned unpaid orders`

	ctx.JSON(http.StatusOK, gin.H{
		"message": message,
	})
}
