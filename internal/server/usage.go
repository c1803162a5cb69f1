package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/metergate/metergate/internal/identity"
	usagedomain "github.com/metergate/metergate/internal/usage/domain"
)

type reportUsageRequest struct {
	ApiID       string `json:"api_id" binding:"required"`
	Consumer    string `json:"consumer" binding:"required"`
	Units       int64  `json:"units"`
	OffchainRef string `json:"offchain_ref"`
}

type usageRecordResponse struct {
	UsageID       string     `json:"usage_id"`
	ApiID         string     `json:"api_id"`
	Consumer      string     `json:"consumer"`
	Units         int64      `json:"units"`
	PriceSnapshot int64      `json:"price_snapshot"`
	PaymentUnit   string     `json:"payment_unit"`
	Status        string     `json:"status"`
	OffchainRef   string     `json:"offchain_ref"`
	Reporter      string     `json:"reporter,omitempty"`
	ReportedAt    time.Time  `json:"reported_at"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
}

func toUsageRecordResponse(record *usagedomain.UsageRecord) usageRecordResponse {
	return usageRecordResponse{
		UsageID:       record.UsageID,
		ApiID:         record.ApiID,
		Consumer:      record.Consumer,
		Units:         record.Units,
		PriceSnapshot: record.PriceSnapshot,
		PaymentUnit:   record.PaymentUnit,
		Status:        string(record.Status),
		OffchainRef:   record.OffchainRef,
		Reporter:      record.Reporter,
		ReportedAt:    record.ReportedAt,
		SettledAt:     record.SettledAt,
	}
}

func (s *Server) ReportUsage(c *gin.Context) {
	var req reportUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	apiID, err := identity.ParseApiID(req.ApiID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	consumer, err := identity.ParseAddress(req.Consumer)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reporter, _ := callerFromRequest(c)

	record, err := s.usageSvc.Report(c.Request.Context(), usagedomain.ReportRequest{
		ApiID:       apiID,
		Consumer:    consumer,
		Units:       req.Units,
		OffchainRef: req.OffchainRef,
		Reporter:    reporter,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUsageRecordResponse(record))
}

func (s *Server) SettleUsage(c *gin.Context) {
	usageID, err := usageIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.usageSvc.Settle(c.Request.Context(), usageID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUsageRecordResponse(record))
}

func (s *Server) GetUsage(c *gin.Context) {
	usageID, err := usageIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.usageSvc.Get(c.Request.Context(), usageID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUsageRecordResponse(record))
}
