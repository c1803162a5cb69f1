package server

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/metergate/metergate/internal/identity"
)

// HeaderCaller carries the execution-environment caller identity on the
// trusted ledger surface. The gateway surface ignores it: there the
// caller is whoever the signature recovers to.
const HeaderCaller = "X-Caller"

func callerFromRequest(c *gin.Context) (common.Address, error) {
	raw := strings.TrimSpace(c.GetHeader(HeaderCaller))
	if raw == "" {
		return common.Address{}, identity.ErrInvalidAddress
	}
	return identity.ParseAddress(raw)
}

func apiIDParam(c *gin.Context) (common.Hash, error) {
	return identity.ParseApiID(strings.TrimSpace(c.Param("apiId")))
}

func usageIDParam(c *gin.Context) (common.Hash, error) {
	return identity.ParseUsageID(strings.TrimSpace(c.Param("usageId")))
}
