package controllers

import (
	"errors"
	"net/http"

	"github.com/Kariqs/galio-api/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	msgInvalidInput        = "invalid input"
	msgInternalServerError = "Internal server error"
)

func sendJSONResponse(ctx *gin.Context, status int, data gin.H) {
	ctx.JSON(status, data)
}

func sendErrorResponse(ctx *gin.Context, status int, message string) {
	sendJSONResponse(ctx, status, gin.H{"message": message})
}

// errorStatus maps a services error to a status code and a client-safe message.
// Unexpected errors are logged and hidden from the client.
func errorStatus(ctx *gin.Context, err error) (int, string) {
	switch {
	case services.IsValidationError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInsufficientStock):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrCartItemNotFound), errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrPaymentInitiation):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, services.ErrPaymentNotRecorded):
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("payment not recorded")
		return http.StatusInternalServerError, "Your payment request was sent but we could not record it. Please contact support before retrying."
	default:
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("request failed")
		return http.StatusInternalServerError, msgInternalServerError
	}
}

func respondWithServiceError(ctx *gin.Context, err error) {
	status, message := errorStatus(ctx, err)
	sendErrorResponse(ctx, status, message)
}
