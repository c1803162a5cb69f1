package server

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/metergate/metergate/internal/authsig/domain"
	gatewaydomain "github.com/metergate/metergate/internal/gateway/domain"
	"github.com/metergate/metergate/internal/identity"
)

type meteredCallRequest struct {
	Auth struct {
		Consumer string `json:"consumer" binding:"required"`
		ApiID    string `json:"api_id" binding:"required"`
		Nonce    int64  `json:"nonce"`
		Deadline int64  `json:"deadline"`
	} `json:"auth" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
	Input       string `json:"input"`
	Units       int64  `json:"units"`
	OffchainRef string `json:"offchain_ref"`
}

func (s *Server) MeteredCall(c *gin.Context) {
	apiID, err := apiIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req meteredCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	consumer, err := identity.ParseAddress(req.Auth.Consumer)
	if err != nil {
		AbortWithError(c, authdomain.ErrMalformed)
		return
	}
	authApiID, err := identity.ParseApiID(req.Auth.ApiID)
	if err != nil {
		AbortWithError(c, authdomain.ErrMalformed)
		return
	}
	signature, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		AbortWithError(c, authdomain.ErrMalformed)
		return
	}

	result, err := s.gatewaySvc.Call(c.Request.Context(), gatewaydomain.CallRequest{
		ApiID: apiID,
		Auth: authdomain.Payload{
			Consumer: consumer,
			ApiID:    authApiID,
			Nonce:    req.Auth.Nonce,
			Deadline: req.Auth.Deadline,
		},
		Signature:   signature,
		Input:       req.Input,
		Units:       req.Units,
		OffchainRef: req.OffchainRef,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
