package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/go-checkout-api/internal/dto"
	"github.com/flicky/go-checkout-api/internal/service"
)

type CheckoutHandler struct {
	svc *service.CheckoutService
}

func NewCheckoutHandler(svc *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.CreateSession(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentGateway):
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create checkout session"})
		case errors.Is(err, service.ErrMissingUserID),
			errors.Is(err, service.ErrEmptyCart),
			errors.Is(err, service.ErrMixedCarts),
			errors.Is(err, service.ErrInvalidQuantity),
			errors.Is(err, service.ErrNegativePrice):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) GetSessionStatus(c *gin.Context) {
	resp, err := h.svc.GetSessionStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrPaymentGateway) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to retrieve checkout session"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
