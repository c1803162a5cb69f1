package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/config"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	registryrepository "github.com/metergate/metergate/internal/registry/repository"
	registryservice "github.com/metergate/metergate/internal/registry/service"
	revenuedomain "github.com/metergate/metergate/internal/revenue/domain"
	"github.com/metergate/metergate/internal/revenue/repository"
	treasurydomain "github.com/metergate/metergate/internal/treasury/domain"
	treasuryservice "github.com/metergate/metergate/internal/treasury/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const custodyHex = "0x00000000000000000000000000000000000000fe"

var (
	apiID       = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	provider    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	unit        = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	destination = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	custody     = common.HexToAddress(custodyHex)
)

// failingTreasury rejects every transfer, standing in for an
// unavailable custody backend.
type failingTreasury struct{}

func (failingTreasury) Transfer(context.Context, common.Address, common.Address, common.Address, int64) error {
	return treasurydomain.ErrTransferFailed
}

func (failingTreasury) Deposit(context.Context, common.Address, common.Address, int64) error {
	return treasurydomain.ErrTransferFailed
}

func (failingTreasury) BalanceOf(context.Context, common.Address, common.Address) (int64, error) {
	return 0, nil
}

type fixture struct {
	db          *gorm.DB
	revenueSvc  revenuedomain.Service
	treasurySvc treasurydomain.Service
	node        *snowflake.Node
}

func setup(t *testing.T, treasuryOverride treasurydomain.Service) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&registrydomain.ApiConfig{},
		&revenuedomain.RevenueBalance{},
		&treasurydomain.Holding{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	cfg := config.Config{CustodyAccount: custodyHex}

	registrySvc := registryservice.NewService(registryservice.Params{
		DB: db, Log: log, Clock: clock.System(), Repo: registryrepository.Provide(),
	})
	treasurySvc := treasuryservice.NewService(treasuryservice.Params{
		DB: db, Log: log, GenID: node, Cfg: cfg,
	})
	wired := treasurySvc
	if treasuryOverride != nil {
		wired = treasuryOverride
	}
	revenueSvc := NewService(Params{
		DB: db, Log: log, GenID: node, Clock: clock.System(), Cfg: cfg,
		Repo:        repository.Provide(),
		RegistrySvc: registrySvc,
		TreasurySvc: wired,
	})

	_, err = registrySvc.Register(context.Background(), registrydomain.RegisterRequest{
		ApiID:        apiID,
		PaymentUnit:  unit,
		PricePerUnit: 2,
		Caller:       provider,
	})
	require.NoError(t, err)

	return fixture{db: db, revenueSvc: revenueSvc, treasurySvc: treasurySvc, node: node}
}

func (f fixture) credit(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, repository.Provide().Credit(context.Background(), f.db, f.node.Generate(),
		"0x1111111111111111111111111111111111111111111111111111111111111111", amount))
}

func TestWithdrawPaysDestination(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	f.credit(t, 50)
	require.NoError(t, f.treasurySvc.Deposit(ctx, unit, custody, 50))

	require.NoError(t, f.revenueSvc.Withdraw(ctx, revenuedomain.WithdrawRequest{
		ApiID:       apiID,
		Amount:      30,
		Destination: destination,
		Caller:      provider,
	}))

	remaining, err := f.revenueSvc.BalanceOf(ctx, apiID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), remaining)

	destBal, err := f.treasurySvc.BalanceOf(ctx, unit, destination)
	require.NoError(t, err)
	assert.Equal(t, int64(30), destBal)
}

func TestWithdrawMoreThanBalance(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	f.credit(t, 10)

	err := f.revenueSvc.Withdraw(ctx, revenuedomain.WithdrawRequest{
		ApiID:       apiID,
		Amount:      11,
		Destination: destination,
		Caller:      provider,
	})
	require.ErrorIs(t, err, revenuedomain.ErrInsufficientRevenue)

	remaining, err := f.revenueSvc.BalanceOf(ctx, apiID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), remaining)
}

func TestWithdrawNotProvider(t *testing.T) {
	f := setup(t, nil)

	f.credit(t, 10)

	err := f.revenueSvc.Withdraw(context.Background(), revenuedomain.WithdrawRequest{
		ApiID:       apiID,
		Amount:      5,
		Destination: destination,
		Caller:      destination,
	})
	assert.ErrorIs(t, err, registrydomain.ErrUnauthorized)
}

func TestWithdrawValidation(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	err := f.revenueSvc.Withdraw(ctx, revenuedomain.WithdrawRequest{ApiID: apiID, Amount: 0, Destination: destination, Caller: provider})
	assert.ErrorIs(t, err, revenuedomain.ErrInvalidAmount)

	err = f.revenueSvc.Withdraw(ctx, revenuedomain.WithdrawRequest{ApiID: apiID, Amount: 5, Caller: provider})
	assert.ErrorIs(t, err, revenuedomain.ErrInvalidDestination)
}

func TestWithdrawTransferFailureRestoresBalance(t *testing.T) {
	f := setup(t, failingTreasury{})
	ctx := context.Background()

	f.credit(t, 40)

	err := f.revenueSvc.Withdraw(ctx, revenuedomain.WithdrawRequest{
		ApiID:       apiID,
		Amount:      25,
		Destination: destination,
		Caller:      provider,
	})
	require.ErrorIs(t, err, treasurydomain.ErrTransferFailed)

	// The debited amount came back.
	remaining, err := f.revenueSvc.BalanceOf(ctx, apiID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), remaining)
}
