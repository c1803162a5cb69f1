package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/metergate/metergate/internal/identity"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
)

type registerApiRequest struct {
	ApiID        string `json:"api_id" binding:"required"`
	PaymentUnit  string `json:"payment_unit" binding:"required"`
	PricePerUnit int64  `json:"price_per_unit"`
	MetadataRef  string `json:"metadata_ref"`
}

type updateApiRequest struct {
	PricePerUnit *int64  `json:"price_per_unit"`
	MetadataRef  *string `json:"metadata_ref"`
	Active       *bool   `json:"active"`
}

type apiConfigResponse struct {
	ApiID        string `json:"api_id"`
	Provider     string `json:"provider"`
	PaymentUnit  string `json:"payment_unit"`
	PricePerUnit int64  `json:"price_per_unit"`
	MetadataRef  string `json:"metadata_ref"`
	Active       bool   `json:"active"`
}

func toApiConfigResponse(cfg registrydomain.ApiConfig) apiConfigResponse {
	return apiConfigResponse{
		ApiID:        cfg.ApiID,
		Provider:     cfg.Provider,
		PaymentUnit:  cfg.PaymentUnit,
		PricePerUnit: cfg.PricePerUnit,
		MetadataRef:  cfg.MetadataRef,
		Active:       cfg.Active,
	}
}

func (s *Server) RegisterApi(c *gin.Context) {
	caller, err := callerFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req registerApiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	apiID, err := identity.ParseApiID(req.ApiID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	paymentUnit, err := identity.ParseAddress(req.PaymentUnit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	cfg, err := s.registrySvc.Register(c.Request.Context(), registrydomain.RegisterRequest{
		ApiID:        apiID,
		PaymentUnit:  paymentUnit,
		PricePerUnit: req.PricePerUnit,
		MetadataRef:  req.MetadataRef,
		Caller:       caller,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toApiConfigResponse(*cfg))
}

func (s *Server) UpdateApiConfig(c *gin.Context) {
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

	var req updateApiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	cfg, err := s.registrySvc.Update(c.Request.Context(), registrydomain.UpdateRequest{
		ApiID:        apiID,
		PricePerUnit: req.PricePerUnit,
		MetadataRef:  req.MetadataRef,
		Active:       req.Active,
		Caller:       caller,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toApiConfigResponse(*cfg))
}

func (s *Server) GetApiConfig(c *gin.Context) {
	apiID, err := apiIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	cfg, err := s.registrySvc.Get(c.Request.Context(), apiID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !cfg.Registered() {
		AbortWithError(c, registrydomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, toApiConfigResponse(cfg))
}

type providerApiOverview struct {
	apiConfigResponse
	Revenue int64 `json:"revenue"`
}

// ProviderOverview lists the caller's registered APIs with their
// current withdrawable revenue.
func (s *Server) ProviderOverview(c *gin.Context) {
	caller, err := callerFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	configs, err := s.registrySvc.ListByProvider(c.Request.Context(), caller)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]providerApiOverview, 0, len(configs))
	for _, cfg := range configs {
		revenue, err := s.revenueSvc.BalanceOf(c.Request.Context(), cfg.ApiIDHash())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		out = append(out, providerApiOverview{
			apiConfigResponse: toApiConfigResponse(cfg),
			Revenue:           revenue,
		})
	}

	c.JSON(http.StatusOK, gin.H{"apis": out})
}
