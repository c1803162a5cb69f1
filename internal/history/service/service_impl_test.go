package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/history/domain"
	"github.com/metergate/metergate/internal/history/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var (
	historyApiID   = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	historyApiID2  = common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
	historyCaller  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	historyCaller2 = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func setupHistory(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CallRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, fake
}

func appendCall(t *testing.T, svc domain.Service, apiID common.Hash, consumer common.Address, units int64) {
	t.Helper()
	err := svc.Append(context.Background(), domain.AppendRequest{
		UsageID:  common.HexToHash(fmt.Sprintf("0x%064d", units)),
		ApiID:    apiID,
		Consumer: consumer,
		Units:    units,
		Metadata: map[string]any{"settled": true},
	})
	require.NoError(t, err)
}

func TestAppendAndList(t *testing.T) {
	svc, _ := setupHistory(t)
	appendCall(t, svc, historyApiID, historyCaller, 3)

	resp, err := svc.List(context.Background(), domain.ListRequest{Consumer: historyCaller})
	require.NoError(t, err)
	require.Len(t, resp.Calls, 1)
	assert.Equal(t, int64(3), resp.Calls[0].Units)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", resp.Calls[0].Consumer)
	assert.Equal(t, true, resp.Calls[0].Metadata["settled"])
	assert.False(t, resp.HasMore)
}

func TestListNewestFirstWithCursor(t *testing.T) {
	svc, fake := setupHistory(t)
	for i := int64(1); i <= 5; i++ {
		appendCall(t, svc, historyApiID, historyCaller, i)
		fake.Advance(time.Minute)
	}

	req := domain.ListRequest{Consumer: historyCaller}
	req.PageSize = 2

	first, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Calls, 2)
	assert.Equal(t, int64(5), first.Calls[0].Units)
	assert.Equal(t, int64(4), first.Calls[1].Units)
	require.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	req.PageToken = first.NextPageToken
	second, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, second.Calls, 2)
	assert.Equal(t, int64(3), second.Calls[0].Units)
	assert.Equal(t, int64(2), second.Calls[1].Units)
	require.True(t, second.HasMore)

	req.PageToken = second.NextPageToken
	third, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, third.Calls, 1)
	assert.Equal(t, int64(1), third.Calls[0].Units)
	assert.False(t, third.HasMore)
}

func TestListFiltersByApi(t *testing.T) {
	svc, fake := setupHistory(t)
	appendCall(t, svc, historyApiID, historyCaller, 1)
	fake.Advance(time.Second)
	appendCall(t, svc, historyApiID2, historyCaller, 2)
	fake.Advance(time.Second)
	appendCall(t, svc, historyApiID, historyCaller2, 3)

	resp, err := svc.List(context.Background(), domain.ListRequest{
		Consumer: historyCaller,
		ApiID:    &historyApiID2,
	})
	require.NoError(t, err)
	require.Len(t, resp.Calls, 1)
	assert.Equal(t, int64(2), resp.Calls[0].Units)
}

func TestListInvalidPageToken(t *testing.T) {
	svc, _ := setupHistory(t)

	req := domain.ListRequest{Consumer: historyCaller}
	req.PageToken = "not-a-token"

	_, err := svc.List(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestListUnknownConsumerIsEmpty(t *testing.T) {
	svc, _ := setupHistory(t)
	appendCall(t, svc, historyApiID, historyCaller, 1)

	resp, err := svc.List(context.Background(), domain.ListRequest{Consumer: historyCaller2})
	require.NoError(t, err)
	assert.Empty(t, resp.Calls)
	assert.False(t, resp.HasMore)
}
