package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	historydomain "github.com/metergate/metergate/internal/history/domain"
	"github.com/metergate/metergate/internal/identity"
	"github.com/metergate/metergate/pkg/db/pagination"
)

func (s *Server) ListHistory(c *gin.Context) {
	consumer, err := identity.ParseAddress(strings.TrimSpace(c.Query("consumer")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req := historydomain.ListRequest{
		Pagination: page,
		Consumer:   consumer,
	}
	if raw := strings.TrimSpace(c.Query("api_id")); raw != "" {
		apiID, err := identity.ParseApiID(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.ApiID = &apiID
	}

	resp, err := s.historySvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
