package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/metergate/metergate/internal/identity"
	revenuedomain "github.com/metergate/metergate/internal/revenue/domain"
)

type withdrawRequest struct {
	Amount      int64  `json:"amount"`
	Destination string `json:"destination" binding:"required"`
}

func (s *Server) Withdraw(c *gin.Context) {
	caller, err := callerFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	apiID, err := apiIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	destination, err := identity.ParseAddress(req.Destination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.revenueSvc.Withdraw(c.Request.Context(), revenuedomain.WithdrawRequest{
		ApiID:       apiID,
		Amount:      req.Amount,
		Destination: destination,
		Caller:      caller,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"api_id":      identity.HashHex(apiID),
		"amount":      req.Amount,
		"destination": identity.AddressHex(destination),
	})
}

func (s *Server) RevenueBalance(c *gin.Context) {
	apiID, err := apiIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	amount, err := s.revenueSvc.BalanceOf(c.Request.Context(), apiID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"api_id": identity.HashHex(apiID),
		"amount": amount,
	})
}
