package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	balancedomain "github.com/metergate/metergate/internal/balance/domain"
	"github.com/metergate/metergate/internal/balance/repository"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/config"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	registryrepository "github.com/metergate/metergate/internal/registry/repository"
	registryservice "github.com/metergate/metergate/internal/registry/service"
	treasurydomain "github.com/metergate/metergate/internal/treasury/domain"
	treasuryservice "github.com/metergate/metergate/internal/treasury/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const custodyHex = "0x00000000000000000000000000000000000000fe"

var (
	apiID    = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	provider = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	unit     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	consumer = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	custody  = common.HexToAddress(custodyHex)
)

type fixture struct {
	balanceSvc  balancedomain.Service
	registrySvc registrydomain.Service
	treasurySvc treasurydomain.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&registrydomain.ApiConfig{},
		&balancedomain.Balance{},
		&treasurydomain.Holding{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	cfg := config.Config{CustodyAccount: custodyHex}

	registrySvc := registryservice.NewService(registryservice.Params{
		DB:    db,
		Log:   log,
		Clock: clock.System(),
		Repo:  registryrepository.Provide(),
	})
	treasurySvc := treasuryservice.NewService(treasuryservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Cfg:   cfg,
	})
	balanceSvc := NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clock.System(),
		Cfg:         cfg,
		Repo:        repository.Provide(),
		RegistrySvc: registrySvc,
		TreasurySvc: treasurySvc,
	})

	_, err = registrySvc.Register(context.Background(), registrydomain.RegisterRequest{
		ApiID:        apiID,
		PaymentUnit:  unit,
		PricePerUnit: 2,
		Caller:       provider,
	})
	require.NoError(t, err)

	return fixture{balanceSvc: balanceSvc, registrySvc: registrySvc, treasurySvc: treasurySvc}
}

func TestPrepayCreditsUnitsAndMovesFunds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.treasurySvc.Deposit(ctx, unit, consumer, 100))

	balance, err := f.balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{
		ApiID:    apiID,
		Units:    5,
		Consumer: consumer,
		Payer:    consumer,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance.PrepaidUnits)

	// 5 units at price 2 cost 10.
	payerBal, err := f.treasurySvc.BalanceOf(ctx, unit, consumer)
	require.NoError(t, err)
	custodyBal, err := f.treasurySvc.BalanceOf(ctx, unit, custody)
	require.NoError(t, err)
	assert.Equal(t, int64(90), payerBal)
	assert.Equal(t, int64(10), custodyBal)

	units, err := f.balanceSvc.PrepaidUnits(ctx, apiID, consumer)
	require.NoError(t, err)
	assert.Equal(t, int64(5), units)
}

func TestPrepayAccumulates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.treasurySvc.Deposit(ctx, unit, consumer, 100))

	for i := 0; i < 3; i++ {
		_, err := f.balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{
			ApiID:    apiID,
			Units:    4,
			Consumer: consumer,
			Payer:    consumer,
		})
		require.NoError(t, err)
	}

	units, err := f.balanceSvc.PrepaidUnits(ctx, apiID, consumer)
	require.NoError(t, err)
	assert.Equal(t, int64(12), units)
}

func TestPrepayPayerWithoutFunds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{
		ApiID:    apiID,
		Units:    5,
		Consumer: consumer,
		Payer:    consumer,
	})
	require.ErrorIs(t, err, treasurydomain.ErrTransferFailed)

	// No units were credited.
	units, err := f.balanceSvc.PrepaidUnits(ctx, apiID, consumer)
	require.NoError(t, err)
	assert.Zero(t, units)
}

func TestPrepayThirdPartyPayer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sponsor := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	require.NoError(t, f.treasurySvc.Deposit(ctx, unit, sponsor, 20))

	balance, err := f.balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{
		ApiID:    apiID,
		Units:    3,
		Consumer: consumer,
		Payer:    sponsor,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.PrepaidUnits)

	sponsorBal, err := f.treasurySvc.BalanceOf(ctx, unit, sponsor)
	require.NoError(t, err)
	assert.Equal(t, int64(14), sponsorBal)
}

func TestPrepayValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{ApiID: apiID, Units: 0, Consumer: consumer, Payer: consumer})
	assert.ErrorIs(t, err, balancedomain.ErrInvalidUnits)

	_, err = f.balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{ApiID: apiID, Units: 1, Payer: consumer})
	assert.ErrorIs(t, err, balancedomain.ErrInvalidConsumer)

	_, err = f.balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{ApiID: apiID, Units: 1, Consumer: consumer})
	assert.ErrorIs(t, err, balancedomain.ErrInvalidPayer)

	unknown := common.HexToHash("0x9999999999999999999999999999999999999999999999999999999999999999")
	_, err = f.balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{ApiID: unknown, Units: 1, Consumer: consumer, Payer: consumer})
	assert.ErrorIs(t, err, registrydomain.ErrNotFound)
}

func TestPrepayInactiveApi(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	inactive := false
	_, err := f.registrySvc.Update(ctx, registrydomain.UpdateRequest{
		ApiID:  apiID,
		Active: &inactive,
		Caller: provider,
	})
	require.NoError(t, err)

	require.NoError(t, f.treasurySvc.Deposit(ctx, unit, consumer, 100))
	_, err = f.balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{
		ApiID:    apiID,
		Units:    1,
		Consumer: consumer,
		Payer:    consumer,
	})
	assert.ErrorIs(t, err, registrydomain.ErrInactive)
}
