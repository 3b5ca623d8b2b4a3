package ledger

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/model"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// Service owns all balance movement. Every credit and debit in the game
// goes through here so the audit trail and overdraft guard live in one place.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new ledger Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// GetOrCreate looks up the account for a Discord user, creating it with a
// zero balance on first contact.
func (svc *Service) GetOrCreate(ctx context.Context, discordID string) (*model.Account, error) {
	var acct model.Account
	err := svc.db.WithContext(ctx).
		Where(model.Account{DiscordID: discordID}).
		FirstOrCreate(&acct).Error
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// Get returns the account for a Discord user without creating it.
func (svc *Service) Get(ctx context.Context, discordID string) (*model.Account, error) {
	var acct model.Account
	err := svc.db.WithContext(ctx).Where("discord_id = ?", discordID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// Balance returns the current balance for an account.
func (svc *Service) Balance(ctx context.Context, accountID int64) (int64, error) {
	var acct model.Account
	err := svc.db.WithContext(ctx).Select("balance").First(&acct, accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Credit adds coins to an account.
func (svc *Service) Credit(ctx context.Context, accountID, amount int64) error {
	return Credit(svc.db.WithContext(ctx), accountID, amount)
}

// Debit removes coins from an account, failing with ErrInsufficientFunds
// if the balance would go negative.
func (svc *Service) Debit(ctx context.Context, accountID, amount int64) error {
	return Debit(svc.db.WithContext(ctx), accountID, amount)
}

// Transfer moves coins between two accounts atomically.
func (svc *Service) Transfer(ctx context.Context, fromID, toID, amount int64) error {
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := Debit(tx, fromID, amount); err != nil {
			return err
		}
		return Credit(tx, toID, amount)
	})
	if err != nil {
		return err
	}
	svc.logger.Info("transfer",
		zap.Int64("from", fromID),
		zap.Int64("to", toID),
		zap.Int64("amount", amount))
	return nil
}

// Credit adds coins to an account inside an existing transaction.
func Credit(tx *gorm.DB, accountID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res := tx.Model(&model.Account{}).Where("id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Debit removes coins from an account inside an existing transaction.
// The balance guard is part of the UPDATE, so concurrent debits can never
// drive the balance negative.
func Debit(tx *gorm.DB, accountID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res := tx.Model(&model.Account{}).
		Where("id = ? AND balance >= ?", accountID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}
