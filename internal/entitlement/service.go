// Package entitlement enforces the credit and subscription rules on top of
// the ledger store: who may search, what a search costs, and the
// reserve-then-refund protocol around the search itself.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/quintela/searchledger/internal/db"
	"github.com/quintela/searchledger/internal/db/models"
)

// SearchFunc performs the actual channel search once a charge has been
// reserved. It returns the number of results found. Any error (including a
// context timeout) triggers a full refund of the reservation.
type SearchFunc func(ctx context.Context, term string) (resultCount int, err error)

// Config holds the entitlement defaults consumed from the environment.
type Config struct {
	DefaultPrice   int64
	InitialCredits int64
	ValidityDays   int
	SearchTimeout  time.Duration
}

// Service applies entitlement rules atop the store.
type Service struct {
	store  *db.Store
	cfg    Config
	search SearchFunc
}

// NewService creates the entitlement service. search is the injected search
// capability; tests swap in a deterministic stub.
func NewService(store *db.Store, cfg Config, search SearchFunc) *Service {
	return &Service{store: store, cfg: cfg, search: search}
}

// RegisterOrRenew inserts or fully overwrites an account: credits and expiry
// are reset to the given values and the account is reactivated. Prior
// balance never carries over.
func (s *Service) RegisterOrRenew(id int64, handle, displayName string, credits int64, validityDays int, now time.Time) error {
	expiresAt := now.AddDate(0, 0, validityDays)
	if err := s.store.UpsertAccount(id, handle, displayName, credits, expiresAt); err != nil {
		return err
	}
	log.Printf("[entitlement] Registered account %d (@%s): %d credits, %d days", id, handle, credits, validityDays)
	return nil
}

// AutoRegister registers a first-contact caller with the configured default
// credit grant and validity window.
func (s *Service) AutoRegister(id int64, handle, displayName string, now time.Time) error {
	return s.RegisterOrRenew(id, handle, displayName, s.cfg.InitialCredits, s.cfg.ValidityDays, now)
}

// GetProfile loads an account, reporting ErrNotRegistered for unknown ids.
func (s *Service) GetProfile(id int64) (*models.Account, error) {
	account, err := s.store.GetAccount(id)
	if err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	return account, nil
}

// CheckEligibility reports whether an account may currently perform a priced
// action, independent of balance. nil means eligible. Disabled takes
// precedence over expired.
func CheckEligibility(account *models.Account, now time.Time) error {
	if account == nil {
		return ErrNotRegistered
	}
	if !account.IsActive {
		return ErrDisabled
	}
	if now.After(account.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// QuoteAffordableSearches returns how many searches the account balance
// covers at the current price (floor division), along with the price used.
// The quote may go stale before a charge; the charge always re-reads the
// price.
func (s *Service) QuoteAffordableSearches(account *models.Account) (int64, int64, error) {
	price, err := s.store.GetPrice()
	if err != nil {
		return 0, 0, err
	}
	if price <= 0 {
		// SetPrice rejects non-positive values; this guards a hand-edited row.
		return 0, price, nil
	}
	return account.Credits / price, price, nil
}

// ChargeReceipt describes a completed, charged search.
type ChargeReceipt struct {
	Term               string
	ResultCount        int
	CreditsCharged     int64
	RemainingCredits   int64
	AffordableSearches int64
}

// ChargeForSearch runs the full reserve-search-commit sequence:
//
//  1. load the account and check eligibility,
//  2. reserve the charge with a conditional debit (debit only if the balance
//     covers the price; a losing concurrent charge sees insufficient credits),
//  3. run the injected search under the configured timeout,
//  4. on success append a search log entry, on any failure refund the debit.
//
// The debit commits strictly before the search runs, so the search never
// runs for an unfunded or ineligible account; the refund path guarantees the
// caller is never left debited for a search that did not complete.
func (s *Service) ChargeForSearch(ctx context.Context, id int64, term string, now time.Time) (*ChargeReceipt, error) {
	account, err := s.GetProfile(id)
	if err != nil {
		return nil, err
	}
	if err := CheckEligibility(account, now); err != nil {
		return nil, err
	}

	price, err := s.store.GetPrice()
	if err != nil {
		return nil, err
	}

	debited, err := s.store.DebitIfAtLeast(id, price)
	if err != nil {
		return nil, err
	}
	if !debited {
		return nil, ErrInsufficientCredits
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	resultCount, searchErr := s.search(searchCtx, term)
	if searchErr == nil {
		searchErr = searchCtx.Err() // a timeout with a partial result is still a failure
	}
	if searchErr != nil {
		s.refund(id, price, searchErr)
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, searchErr)
	}

	if err := s.store.AppendSearchLog(id, term, resultCount, price); err != nil {
		// The charged work is not on record; hand the credits back rather
		// than bill for an unlogged search.
		s.refund(id, price, err)
		return nil, err
	}

	remaining := account.Credits - price
	return &ChargeReceipt{
		Term:               term,
		ResultCount:        resultCount,
		CreditsCharged:     price,
		RemainingCredits:   remaining,
		AffordableSearches: remaining / price,
	}, nil
}

// refund reverses a reservation after a failed search. A refund that itself
// fails is logged with full context for operator follow-up; there is no
// retry queue.
func (s *Service) refund(id int64, price int64, cause error) {
	if err := s.store.AdjustCredits(id, price); err != nil {
		log.Printf("[entitlement] REFUND FAILED for account %d: %d credits not returned (refund error: %v, search error: %v)",
			id, price, err, cause)
		return
	}
	log.Printf("[entitlement] Refunded %d credits to account %d after failed search: %v", price, id, cause)
}

// SetPrice updates the global per-search price. Non-positive prices are
// rejected.
func (s *Service) SetPrice(value int64) error {
	if value <= 0 {
		return ErrInvalidPrice
	}
	if err := s.store.SetPrice(value); err != nil {
		return err
	}
	log.Printf("[entitlement] Search price set to %d credits", value)
	return nil
}

// GetPrice returns the current per-search price.
func (s *Service) GetPrice() (int64, error) {
	return s.store.GetPrice()
}

// AddCredits tops up an account balance. Admin-triggered; no eligibility
// precondition, a disabled or expired account can still be topped up.
func (s *Service) AddCredits(id int64, amount int64) error {
	if err := s.store.AdjustCredits(id, amount); err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			return ErrNotRegistered
		}
		return err
	}
	return nil
}

// Disable soft-disables an account until an admin re-registers it.
func (s *Service) Disable(id int64) error {
	return s.store.DeactivateAccount(id)
}

// Stats is the admin-facing system snapshot.
type Stats struct {
	ActiveAccounts int64
	SearchesToday  int64
	Price          int64
}

// SystemStats returns active account and same-day search counts plus the
// current price.
func (s *Service) SystemStats(now time.Time) (*Stats, error) {
	accounts, err := s.store.CountActiveAccounts()
	if err != nil {
		return nil, err
	}
	searches, err := s.store.CountSearchesOnDate(now)
	if err != nil {
		return nil, err
	}
	price, err := s.store.GetPrice()
	if err != nil {
		return nil, err
	}
	return &Stats{ActiveAccounts: accounts, SearchesToday: searches, Price: price}, nil
}

// DaysRemaining reports whole days until the account expires, floored at
// zero.
func DaysRemaining(account *models.Account, now time.Time) int {
	if now.After(account.ExpiresAt) {
		return 0
	}
	return int(account.ExpiresAt.Sub(now).Hours() / 24)
}
