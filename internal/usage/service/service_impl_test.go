package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	balancedomain "github.com/metergate/metergate/internal/balance/domain"
	balancerepository "github.com/metergate/metergate/internal/balance/repository"
	balanceservice "github.com/metergate/metergate/internal/balance/service"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/events"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	registryrepository "github.com/metergate/metergate/internal/registry/repository"
	registryservice "github.com/metergate/metergate/internal/registry/service"
	revenuedomain "github.com/metergate/metergate/internal/revenue/domain"
	revenuerepository "github.com/metergate/metergate/internal/revenue/repository"
	treasurydomain "github.com/metergate/metergate/internal/treasury/domain"
	treasuryservice "github.com/metergate/metergate/internal/treasury/service"
	usagedomain "github.com/metergate/metergate/internal/usage/domain"
	"github.com/metergate/metergate/internal/usage/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var (
	apiID    = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	provider = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	unit     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	consumer = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type fixture struct {
	db          *gorm.DB
	fakeClock   *clock.FakeClock
	usageSvc    usagedomain.Service
	registrySvc registrydomain.Service
	revenueRepo revenuedomain.Repository
	hub         *events.Hub
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&registrydomain.ApiConfig{},
		&balancedomain.Balance{},
		&usagedomain.UsageRecord{},
		&revenuedomain.RevenueBalance{},
		&treasurydomain.Holding{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	cfg := config.Config{CustodyAccount: "0x00000000000000000000000000000000000000fe"}
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	hub := events.NewHub()

	registrySvc := registryservice.NewService(registryservice.Params{
		DB: db, Log: log, Clock: fakeClock, Repo: registryrepository.Provide(),
	})
	treasurySvc := treasuryservice.NewService(treasuryservice.Params{
		DB: db, Log: log, GenID: node, Cfg: cfg,
	})
	balanceSvc := balanceservice.NewService(balanceservice.Params{
		DB: db, Log: log, GenID: node, Clock: fakeClock, Cfg: cfg,
		Repo:        balancerepository.Provide(),
		RegistrySvc: registrySvc,
		TreasurySvc: treasurySvc,
	})
	revenueRepo := revenuerepository.Provide()
	usageSvc := NewService(Params{
		DB: db, Log: log, GenID: node, Clock: fakeClock,
		Repo:        repository.Provide(),
		BalanceRepo: balancerepository.Provide(),
		RevenueRepo: revenueRepo,
		RegistrySvc: registrySvc,
		Hub:         hub,
	})

	ctx := context.Background()
	_, err = registrySvc.Register(ctx, registrydomain.RegisterRequest{
		ApiID:        apiID,
		PaymentUnit:  unit,
		PricePerUnit: 2,
		Caller:       provider,
	})
	require.NoError(t, err)

	require.NoError(t, treasurySvc.Deposit(ctx, unit, consumer, 100))
	_, err = balanceSvc.Prepay(ctx, balancedomain.PrepayRequest{
		ApiID:    apiID,
		Units:    5,
		Consumer: consumer,
		Payer:    consumer,
	})
	require.NoError(t, err)

	return fixture{
		db:          db,
		fakeClock:   fakeClock,
		usageSvc:    usageSvc,
		registrySvc: registrySvc,
		revenueRepo: revenueRepo,
		hub:         hub,
	}
}

func (f fixture) prepaidUnits(t *testing.T) int64 {
	t.Helper()
	var balance balancedomain.Balance
	require.NoError(t, f.db.Where("api_id = ? AND consumer = ?",
		"0x1111111111111111111111111111111111111111111111111111111111111111",
		"0x00000000000000000000000000000000000000cc",
	).First(&balance).Error)
	return balance.PrepaidUnits
}

func (f fixture) revenue(t *testing.T) int64 {
	t.Helper()
	amount, err := f.revenueRepo.FindAmount(context.Background(), f.db,
		"0x1111111111111111111111111111111111111111111111111111111111111111")
	require.NoError(t, err)
	return amount
}

func TestReportDebitsAndOpensRecord(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	record, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:       apiID,
		Consumer:    consumer,
		Units:       1,
		OffchainRef: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, usagedomain.StatusReported, record.Status)
	assert.Equal(t, int64(2), record.PriceSnapshot)
	assert.Nil(t, record.SettledAt)
	assert.Equal(t, int64(4), f.prepaidUnits(t))
}

func TestSettleCreditsRevenueOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	record, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:    apiID,
		Consumer: consumer,
		Units:    1,
	})
	require.NoError(t, err)

	settled, err := f.usageSvc.Settle(ctx, common.HexToHash(record.UsageID))
	require.NoError(t, err)
	assert.Equal(t, usagedomain.StatusSettled, settled.Status)
	require.NotNil(t, settled.SettledAt)
	assert.Equal(t, int64(2), f.revenue(t))

	// A second settle fails and never double-credits.
	_, err = f.usageSvc.Settle(ctx, common.HexToHash(record.UsageID))
	assert.ErrorIs(t, err, usagedomain.ErrInvalidState)
	assert.Equal(t, int64(2), f.revenue(t))
}

func TestSettleUnknownUsage(t *testing.T) {
	f := setup(t)

	_, err := f.usageSvc.Settle(context.Background(), common.HexToHash("0xdead"))
	assert.ErrorIs(t, err, usagedomain.ErrInvalidState)
}

func TestReportInsufficientBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:    apiID,
		Consumer: consumer,
		Units:    6,
	})
	require.ErrorIs(t, err, balancedomain.ErrInsufficientBalance)

	// The failed report left the balance untouched.
	assert.Equal(t, int64(5), f.prepaidUnits(t))
}

func TestReportValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{ApiID: apiID, Consumer: consumer, Units: 0})
	assert.ErrorIs(t, err, usagedomain.ErrInvalidUnits)

	unknown := common.HexToHash("0x9999999999999999999999999999999999999999999999999999999999999999")
	_, err = f.usageSvc.Report(ctx, usagedomain.ReportRequest{ApiID: unknown, Consumer: consumer, Units: 1})
	assert.ErrorIs(t, err, registrydomain.ErrNotFound)
}

func TestReportAfterDeactivation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// Deactivation blocks new prepayments but never strands units the
	// consumer already paid for.
	inactive := false
	_, err := f.registrySvc.Update(ctx, registrydomain.UpdateRequest{
		ApiID:  apiID,
		Active: &inactive,
		Caller: provider,
	})
	require.NoError(t, err)

	record, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:    apiID,
		Consumer: consumer,
		Units:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, usagedomain.StatusReported, record.Status)
	assert.Equal(t, int64(3), f.prepaidUnits(t))

	_, err = f.usageSvc.Settle(ctx, common.HexToHash(record.UsageID))
	require.NoError(t, err)
	assert.Equal(t, int64(4), f.revenue(t))
}

func TestReportStoresReporter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	reporter := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	record, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:    apiID,
		Consumer: consumer,
		Units:    1,
		Reporter: reporter,
	})
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000dd", record.Reporter)

	var stored usagedomain.UsageRecord
	require.NoError(t, f.db.Where("usage_id = ?", record.UsageID).First(&stored).Error)
	assert.Equal(t, "0x00000000000000000000000000000000000000dd", stored.Reporter)

	// An anonymous report leaves the field empty.
	anon, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:    apiID,
		Consumer: consumer,
		Units:    1,
	})
	require.NoError(t, err)
	assert.Empty(t, anon.Reporter)
}

func TestPriceSnapshotSurvivesPriceChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	record, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:    apiID,
		Consumer: consumer,
		Units:    2,
	})
	require.NoError(t, err)

	// Provider raises the price between report and settle.
	newPrice := int64(100)
	_, err = f.registrySvc.Update(ctx, registrydomain.UpdateRequest{
		ApiID:        apiID,
		PricePerUnit: &newPrice,
		Caller:       provider,
	})
	require.NoError(t, err)

	_, err = f.usageSvc.Settle(ctx, common.HexToHash(record.UsageID))
	require.NoError(t, err)

	// Settlement used the price at report time: 2 units at 2 each.
	assert.Equal(t, int64(4), f.revenue(t))
}

func TestDistinctUsageIDsForIdenticalReports(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:       apiID,
		Consumer:    consumer,
		Units:       1,
		OffchainRef: "same-ref",
	})
	require.NoError(t, err)

	second, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:       apiID,
		Consumer:    consumer,
		Units:       1,
		OffchainRef: "same-ref",
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.UsageID, second.UsageID)
}

func TestListStaleReported(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	record, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:    apiID,
		Consumer: consumer,
		Units:    1,
	})
	require.NoError(t, err)

	f.fakeClock.Advance(10 * time.Minute)

	stale, err := f.usageSvc.ListStaleReported(ctx, f.fakeClock.Now().Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, record.UsageID, stale[0].UsageID)

	_, err = f.usageSvc.Settle(ctx, common.HexToHash(record.UsageID))
	require.NoError(t, err)

	stale, err = f.usageSvc.ListStaleReported(ctx, f.fakeClock.Now().Add(-5*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestReportEmitsEvent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sub, _, err := f.hub.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	record, err := f.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:    apiID,
		Consumer: consumer,
		Units:    1,
	})
	require.NoError(t, err)

	event := <-sub.Events()
	assert.Equal(t, events.KindUsageReported, event.Kind)
	assert.Equal(t, record.UsageID, event.UsageID)
}
