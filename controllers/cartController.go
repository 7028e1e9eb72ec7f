package controllers

import (
	"net/http"
	"strconv"

	"github.com/Kariqs/galio-api/initializers"
	"github.com/Kariqs/galio-api/middlewares"
	"github.com/Kariqs/galio-api/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type cartLineView struct {
	ID          uint            `json:"id"`
	ProductID   uint            `json:"productId"`
	VariantID   *uint           `json:"variantId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type cartView struct {
	Items      []cartLineView  `json:"items"`
	TotalItems int             `json:"totalItems"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

func newCartView(cart *models.Cart) cartView {
	view := cartView{
		Items:      make([]cartLineView, 0, len(cart.Items)),
		TotalItems: cart.TotalItems(),
		Subtotal:   cart.Subtotal(),
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		view.Items = append(view.Items, cartLineView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice(),
			LineTotal:   item.LineTotal(),
		})
	}
	return view
}

func GetCart(ctx *gin.Context) {
	cart, err := initializers.Carts.GetCart(ctx.Request.Context(), middlewares.GetOwner(ctx))
	if err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"cart": newCartView(cart)})
}

func AddCartItem(ctx *gin.Context) {
	var input struct {
		ProductID uint  `json:"productId" binding:"required"`
		VariantID *uint `json:"variantId"`
		Quantity  int   `json:"quantity"`
	}
	if err := ctx.ShouldBindJSON(&input); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}

	item, err := initializers.Carts.AddItem(ctx.Request.Context(), middlewares.GetOwner(ctx), input.ProductID, input.VariantID, input.Quantity)
	if err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusCreated, gin.H{
		"message":  "Item added to cart",
		"id":       item.ID,
		"quantity": item.Quantity,
	})
}

func UpdateCartItem(ctx *gin.Context) {
	itemID, err := strconv.ParseUint(ctx.Param("itemId"), 10, 64)
	if err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, "invalid item id")
		return
	}

	var input struct {
		Quantity int `json:"quantity" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&input); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	if err := initializers.Carts.UpdateItem(ctx.Request.Context(), middlewares.GetOwner(ctx), uint(itemID), input.Quantity); err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": "Cart updated"})
}

func RemoveCartItem(ctx *gin.Context) {
	itemID, err := strconv.ParseUint(ctx.Param("itemId"), 10, 64)
	if err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := initializers.Carts.RemoveItem(ctx.Request.Context(), middlewares.GetOwner(ctx), uint(itemID)); err != nil {
		respondWithServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": "Item removed from cart"})
}
