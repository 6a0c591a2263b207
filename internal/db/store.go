package db

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/quintela/searchledger/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const priceKey = "price_per_search"

// ErrAccountNotFound is returned by reads against an id that was never
// registered.
var ErrAccountNotFound = errors.New("account not found")

// Store is the durable ledger: accounts, the global search price and the
// append-only search log. Every method is an independent round trip to the
// database; nothing is cached in process.
type Store struct {
	db           *gorm.DB
	defaultPrice int64
}

// NewStore wraps an initialized gorm handle. defaultPrice is the fallback
// returned by GetPrice when the price row is missing.
func NewStore(db *gorm.DB, defaultPrice int64) *Store {
	return &Store{db: db, defaultPrice: defaultPrice}
}

// AccountExists reports whether an account row exists for id, active or not.
func (s *Store) AccountExists(id int64) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Account{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count account %d: %w", id, err)
	}
	return count > 0, nil
}

// UpsertAccount inserts a new account or fully overwrites the entitlement
// state of an existing one. Re-registration resets credits and expiry and
// reactivates the account; it never adds to the previous balance.
func (s *Store) UpsertAccount(id int64, handle, displayName string, credits int64, expiresAt time.Time) error {
	account := models.Account{
		ID:          id,
		Handle:      handle,
		DisplayName: displayName,
		Credits:     credits,
		ExpiresAt:   expiresAt,
		IsActive:    true,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"credits", "expires_at", "is_active", "updated_at"}),
	}).Create(&account).Error
	if err != nil {
		return fmt.Errorf("upsert account %d: %w", id, err)
	}
	return nil
}

// GetAccount loads an account by id. Returns ErrAccountNotFound if the id
// was never registered.
func (s *Store) GetAccount(id int64) (*models.Account, error) {
	var account models.Account
	if err := s.db.First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account %d: %w", id, err)
	}
	return &account, nil
}

// AdjustCredits adds delta (which may be negative) to an account balance.
// The arithmetic runs inside the database as a single UPDATE, so concurrent
// adjustments against the same account serialize and none is lost.
func (s *Store) AdjustCredits(id int64, delta int64) error {
	result := s.db.Model(&models.Account{}).
		Where("id = ?", id).
		Update("credits", gorm.Expr("credits + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("adjust credits for account %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DebitIfAtLeast debits amount from the account only if the current balance
// covers it, as one conditional UPDATE. Returns false when the balance was
// insufficient (nothing was debited). Two concurrent debits against a
// balance that covers only one therefore resolve to exactly one success.
func (s *Store) DebitIfAtLeast(id int64, amount int64) (bool, error) {
	result := s.db.Model(&models.Account{}).
		Where("id = ? AND credits >= ?", id, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if result.Error != nil {
		return false, fmt.Errorf("debit account %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeactivateAccount soft-disables an account. Idempotent; deactivating an
// unknown id is a no-op.
func (s *Store) DeactivateAccount(id int64) error {
	err := s.db.Model(&models.Account{}).
		Where("id = ?", id).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("deactivate account %d: %w", id, err)
	}
	return nil
}

// SetPrice updates the global per-search price.
func (s *Store) SetPrice(value int64) error {
	setting := models.Setting{
		Key:   priceKey,
		Value: strconv.FormatInt(value, 10),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("set price: %w", err)
	}
	return nil
}

// GetPrice reads the current per-search price, falling back to the
// configured default if the row is missing or unreadable.
func (s *Store) GetPrice() (int64, error) {
	var setting models.Setting
	if err := s.db.Where("key = ?", priceKey).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.defaultPrice, nil
		}
		return 0, fmt.Errorf("load price: %w", err)
	}
	price, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil {
		return s.defaultPrice, nil
	}
	return price, nil
}

// AppendSearchLog records one completed, charged search.
func (s *Store) AppendSearchLog(accountID int64, term string, resultCount int, creditsCharged int64) error {
	entry := models.SearchLog{
		ID:             uuid.New().String(),
		AccountID:      accountID,
		SearchTerm:     term,
		ResultCount:    resultCount,
		CreditsCharged: creditsCharged,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("append search log for account %d: %w", accountID, err)
	}
	return nil
}

// CountActiveAccounts returns the number of accounts with is_active = true.
func (s *Store) CountActiveAccounts() (int64, error) {
	var count int64
	err := s.db.Model(&models.Account{}).Where("is_active = ?", true).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count active accounts: %w", err)
	}
	return count, nil
}

// CountSearchesOnDate returns the number of logged searches on the calendar
// day containing t, in t's location.
func (s *Store) CountSearchesOnDate(t time.Time) (int64, error) {
	year, month, day := t.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	end := start.Add(24 * time.Hour)

	var count int64
	err := s.db.Model(&models.SearchLog{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count searches: %w", err)
	}
	return count, nil
}
