package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/identity"
	treasurydomain "github.com/metergate/metergate/internal/treasury/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Cfg   config.Config
}

// Service is the in-process custody bank. A deployment backed by an
// external asset (on-chain token, PSP account) substitutes its own
// implementation of treasurydomain.Service.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	timeout time.Duration
}

func NewService(p Params) treasurydomain.Service {
	timeout := p.Cfg.TransferTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("treasury.service"),
		genID:   p.GenID,
		timeout: timeout,
	}
}

func (s *Service) Transfer(ctx context.Context, unit common.Address, from, to common.Address, amount int64) error {
	if identity.IsZeroAddress(unit) {
		return treasurydomain.ErrInvalidUnit
	}
	if identity.IsZeroAddress(from) || identity.IsZeroAddress(to) {
		return treasurydomain.ErrInvalidAccount
	}
	if amount <= 0 {
		return treasurydomain.ErrInvalidAmount
	}
	if from == to {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unitKey := identity.AddressHex(unit)
	fromKey := identity.AddressHex(from)
	toKey := identity.AddressHex(to)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		// Conditional decrement: racing transfers from the same account
		// cannot both pass the funds check.
		result := tx.Exec(
			`UPDATE treasury_holdings
			 SET amount = amount - ?, updated_at = ?
			 WHERE unit = ? AND account = ? AND amount >= ?`,
			amount, now, unitKey, fromKey, amount,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: insufficient funds in %s for %s", treasurydomain.ErrTransferFailed, unitKey, fromKey)
		}

		return s.credit(tx, unitKey, toKey, amount, now)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", treasurydomain.ErrTransferFailed, ctxErr)
		}
		return wrapTransferErr(err)
	}

	s.log.Debug("transfer applied",
		zap.String("unit", unitKey),
		zap.String("from", fromKey),
		zap.String("to", toKey),
		zap.Int64("amount", amount),
	)
	return nil
}

func (s *Service) Deposit(ctx context.Context, unit common.Address, account common.Address, amount int64) error {
	if identity.IsZeroAddress(unit) {
		return treasurydomain.ErrInvalidUnit
	}
	if identity.IsZeroAddress(account) {
		return treasurydomain.ErrInvalidAccount
	}
	if amount <= 0 {
		return treasurydomain.ErrInvalidAmount
	}

	unitKey := identity.AddressHex(unit)
	accountKey := identity.AddressHex(account)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.credit(tx, unitKey, accountKey, amount, time.Now().UTC())
	})
	return wrapTransferErr(err)
}

func (s *Service) BalanceOf(ctx context.Context, unit common.Address, account common.Address) (int64, error) {
	var amount int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM treasury_holdings WHERE unit = ? AND account = ?`,
		identity.AddressHex(unit), identity.AddressHex(account),
	).Scan(&amount).Error
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (s *Service) credit(tx *gorm.DB, unit, account string, amount int64, now time.Time) error {
	result := tx.Exec(
		`UPDATE treasury_holdings
		 SET amount = amount + ?, updated_at = ?
		 WHERE unit = ? AND account = ?`,
		amount, now, unit, account,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 0 {
		return nil
	}

	return tx.Exec(
		`INSERT INTO treasury_holdings (id, unit, account, amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.genID.Generate(), unit, account, amount, now, now,
	).Error
}

func wrapTransferErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, treasurydomain.ErrTransferFailed),
		errors.Is(err, treasurydomain.ErrInvalidUnit),
		errors.Is(err, treasurydomain.ErrInvalidAccount),
		errors.Is(err, treasurydomain.ErrInvalidAmount):
		return err
	}
	return fmt.Errorf("%w: %v", treasurydomain.ErrTransferFailed, err)
}
