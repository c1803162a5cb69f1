package domain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/metergate/metergate/pkg/db/pagination"
)

type AppendRequest struct {
	UsageID     common.Hash
	ApiID       common.Hash
	Consumer    common.Address
	Units       int64
	OffchainRef string
	Metadata    map[string]any
}

type ListRequest struct {
	pagination.Pagination
	Consumer common.Address
	ApiID    *common.Hash
}

type ListResponse struct {
	pagination.PageInfo
	Calls []CallRecord `json:"calls"`
}

type Service interface {
	// Append records one metered call. Best effort by design: the
	// gateway logs a warning and keeps going when it fails, because
	// the accounting of the call already committed.
	Append(ctx context.Context, req AppendRequest) error

	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
