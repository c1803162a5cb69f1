package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/metergate/metergate/internal/identity"
)

type depositRequest struct {
	Unit    string `json:"unit" binding:"required"`
	Account string `json:"account" binding:"required"`
	Amount  int64  `json:"amount"`
}

func (s *Server) TreasuryDeposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	unit, err := identity.ParseAddress(req.Unit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	account, err := identity.ParseAddress(req.Account)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.treasurySvc.Deposit(c.Request.Context(), unit, account, req.Amount); err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.treasurySvc.BalanceOf(c.Request.Context(), unit, account)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"unit":    identity.AddressHex(unit),
		"account": identity.AddressHex(account),
		"balance": balance,
	})
}

func (s *Server) TreasuryBalance(c *gin.Context) {
	unit, err := identity.ParseAddress(strings.TrimSpace(c.Param("unit")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	account, err := identity.ParseAddress(strings.TrimSpace(c.Param("account")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.treasurySvc.BalanceOf(c.Request.Context(), unit, account)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"unit":    identity.AddressHex(unit),
		"account": identity.AddressHex(account),
		"balance": balance,
	})
}
