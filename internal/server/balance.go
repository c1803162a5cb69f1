package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	balancedomain "github.com/metergate/metergate/internal/balance/domain"
	"github.com/metergate/metergate/internal/identity"
)

type prepayRequest struct {
	Units    int64  `json:"units"`
	Consumer string `json:"consumer" binding:"required"`
	Payer    string `json:"payer"`
}

func (s *Server) Prepay(c *gin.Context) {
	apiID, err := apiIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req prepayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	consumer, err := identity.ParseAddress(req.Consumer)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Omitted payer defaults to the consumer paying for themselves.
	payer := consumer
	if strings.TrimSpace(req.Payer) != "" {
		payer, err = identity.ParseAddress(req.Payer)
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}

	balance, err := s.balanceSvc.Prepay(c.Request.Context(), balancedomain.PrepayRequest{
		ApiID:    apiID,
		Units:    req.Units,
		Consumer: consumer,
		Payer:    payer,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"api_id":        balance.ApiID,
		"consumer":      balance.Consumer,
		"prepaid_units": balance.PrepaidUnits,
	})
}

func (s *Server) PrepaidUnits(c *gin.Context) {
	apiID, err := apiIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	consumer, err := identity.ParseAddress(strings.TrimSpace(c.Param("consumer")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	units, err := s.balanceSvc.PrepaidUnits(c.Request.Context(), apiID, consumer)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"api_id":        identity.HashHex(apiID),
		"consumer":      identity.AddressHex(consumer),
		"prepaid_units": units,
	})
}
