package command

import "time"

// Kind classifies a dispatch outcome for the presentation layer.
type Kind string

const (
	KindOK                  Kind = "ok"
	KindForbidden           Kind = "forbidden"
	KindBadArguments        Kind = "bad_arguments"
	KindNotRegistered       Kind = "not_registered"
	KindDisabled            Kind = "disabled"
	KindExpired             Kind = "expired"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindSearchFailed        Kind = "search_failed"
	KindStorageError        Kind = "storage_error"
)

// Result is the structured outcome of one dispatched command. Message is
// always set; the payload fields are filled per command.
type Result struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Usage   string `json:"usage,omitempty"`

	Profile  *ProfileView  `json:"profile,omitempty"`
	Balance  *BalanceView  `json:"balance,omitempty"`
	Receipt  *ReceiptView  `json:"receipt,omitempty"`
	Stats    *StatsView    `json:"stats,omitempty"`
	Commands []CommandHelp `json:"commands,omitempty"`
}

// ProfileView is the caller-facing account summary.
type ProfileView struct {
	ID            int64     `json:"id"`
	Handle        string    `json:"handle"`
	DisplayName   string    `json:"display_name"`
	Credits       int64     `json:"credits"`
	ExpiresAt     time.Time `json:"expires_at"`
	DaysRemaining int       `json:"days_remaining"`
	MemberSince   time.Time `json:"member_since"`
	IsActive      bool      `json:"is_active"`
	NewAccount    bool      `json:"new_account,omitempty"`
}

// BalanceView answers "how many searches can I afford".
type BalanceView struct {
	Credits            int64 `json:"credits"`
	AffordableSearches int64 `json:"affordable_searches"`
	PricePerSearch     int64 `json:"price_per_search"`
}

// ReceiptView reports a completed charged search. CreditsRefunded is set on
// the failure path so the caller always knows whether credits were consumed.
type ReceiptView struct {
	Term               string `json:"term"`
	ResultCount        int    `json:"result_count"`
	CreditsCharged     int64  `json:"credits_charged"`
	RemainingCredits   int64  `json:"remaining_credits"`
	AffordableSearches int64  `json:"affordable_searches"`
}

// StatsView is the admin system snapshot.
type StatsView struct {
	ActiveAccounts int64 `json:"active_accounts"`
	SearchesToday  int64 `json:"searches_today"`
	PricePerSearch int64 `json:"price_per_search"`
}

// CommandHelp describes one command for the cmds listing.
type CommandHelp struct {
	Name      string `json:"name"`
	Usage     string `json:"usage"`
	AdminOnly bool   `json:"admin_only,omitempty"`
}
