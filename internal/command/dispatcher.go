// Package command maps inbound (caller, command, args) tuples onto the
// entitlement service. Permission and argument-shape failures are resolved
// here and never reach the service.
package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quintela/searchledger/internal/db/models"
	"github.com/quintela/searchledger/internal/entitlement"
)

// Caller identifies who sent a command. The transport supplies the id;
// handle and display name are only used when start auto-registers.
type Caller struct {
	ID          int64
	Handle      string
	DisplayName string
}

type handlerFunc func(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result

type commandSpec struct {
	name      string
	usage     string
	minArgs   int
	adminOnly bool
	handler   handlerFunc
}

// Dispatcher routes commands through a fixed table.
type Dispatcher struct {
	svc      *entitlement.Service
	adminID  int64
	now      func() time.Time
	commands map[string]commandSpec
}

// NewDispatcher builds the command table. now is injectable for tests; pass
// nil for time.Now.
func NewDispatcher(svc *entitlement.Service, adminID int64, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	d := &Dispatcher{svc: svc, adminID: adminID, now: now}
	d.commands = map[string]commandSpec{
		"start":      {name: "start", usage: "start", handler: handleStart},
		"cmds":       {name: "cmds", usage: "cmds", handler: handleCmds},
		"creditos":   {name: "creditos", usage: "creditos", handler: handleCredits},
		"perfil":     {name: "perfil", usage: "perfil", handler: handleProfile},
		"live":       {name: "live", usage: "live <term>", minArgs: 1, handler: handleLive},
		"adduser":    {name: "adduser", usage: "adduser <id> <credits> <days>", minArgs: 3, adminOnly: true, handler: handleAddUser},
		"removeuser": {name: "removeuser", usage: "removeuser <id>", minArgs: 1, adminOnly: true, handler: handleRemoveUser},
		"setprice":   {name: "setprice", usage: "setprice <price>", minArgs: 1, adminOnly: true, handler: handleSetPrice},
		"addcredits": {name: "addcredits", usage: "addcredits <id> <amount>", minArgs: 2, adminOnly: true, handler: handleAddCredits},
		"stats":      {name: "stats", usage: "stats", adminOnly: true, handler: handleStats},
	}
	return d
}

// Dispatch validates permission and argument shape, then invokes the
// matching handler.
func (d *Dispatcher) Dispatch(ctx context.Context, caller Caller, name string, args []string) Result {
	spec, ok := d.commands[name]
	if !ok {
		return Result{Kind: KindBadArguments, Message: fmt.Sprintf("Unknown command %q. Send cmds for the list.", name)}
	}
	if spec.adminOnly && caller.ID != d.adminID {
		return Result{Kind: KindForbidden, Message: "Only the administrator can use this command."}
	}
	if len(args) < spec.minArgs {
		return Result{
			Kind:    KindBadArguments,
			Message: fmt.Sprintf("Usage: %s", spec.usage),
			Usage:   spec.usage,
		}
	}
	return spec.handler(ctx, d, caller, args)
}

// parseIntArgs validates that every listed argument is an integer before any
// of them is used. A non-numeric token is user input error, not a fault.
func parseIntArgs(args []string, n int) ([]int64, bool) {
	values := make([]int64, 0, n)
	for _, arg := range args[:n] {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

func badIntArgs(spec commandSpec) Result {
	return Result{
		Kind:    KindBadArguments,
		Message: fmt.Sprintf("Arguments must be numbers. Usage: %s", spec.usage),
		Usage:   spec.usage,
	}
}

// resultFromError maps service failures onto result kinds. Unrecognized
// errors are storage faults: logged with full context and surfaced as a
// generic try-again message.
func resultFromError(err error) Result {
	switch {
	case errors.Is(err, entitlement.ErrNotRegistered):
		return Result{Kind: KindNotRegistered, Message: "You are not registered. Send start first."}
	case errors.Is(err, entitlement.ErrDisabled):
		return Result{Kind: KindDisabled, Message: "Your access has been disabled. Contact the administrator."}
	case errors.Is(err, entitlement.ErrExpired):
		return Result{Kind: KindExpired, Message: "Your access has expired. Contact the administrator to renew."}
	case errors.Is(err, entitlement.ErrInsufficientCredits):
		return Result{Kind: KindInsufficientCredits, Message: "Insufficient credits. Contact the administrator to top up."}
	case errors.Is(err, entitlement.ErrSearchFailed):
		return Result{Kind: KindSearchFailed, Message: "The search failed and no credits were consumed. Please try again."}
	default:
		log.Printf("[dispatch] storage error: %v", err)
		return Result{Kind: KindStorageError, Message: "Something went wrong on our side. Please try again."}
	}
}

func (d *Dispatcher) profileView(account *models.Account, now time.Time) *ProfileView {
	return &ProfileView{
		ID:            account.ID,
		Handle:        account.Handle,
		DisplayName:   account.DisplayName,
		Credits:       account.Credits,
		ExpiresAt:     account.ExpiresAt,
		DaysRemaining: entitlement.DaysRemaining(account, now),
		MemberSince:   account.CreatedAt,
		IsActive:      account.IsActive,
	}
}

func handleStart(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	now := d.now()
	account, err := d.svc.GetProfile(caller.ID)
	if errors.Is(err, entitlement.ErrNotRegistered) {
		if err := d.svc.AutoRegister(caller.ID, caller.Handle, caller.DisplayName, now); err != nil {
			return resultFromError(err)
		}
		account, err = d.svc.GetProfile(caller.ID)
		if err != nil {
			return resultFromError(err)
		}
		view := d.profileView(account, now)
		view.NewAccount = true
		return Result{
			Kind:    KindOK,
			Message: fmt.Sprintf("Welcome %s! You have been registered. Send cmds to see the available commands.", caller.DisplayName),
			Profile: view,
		}
	}
	if err != nil {
		return resultFromError(err)
	}

	// Existing account: report current state, never re-register.
	if err := entitlement.CheckEligibility(account, now); err != nil {
		return resultFromError(err)
	}
	return Result{
		Kind:    KindOK,
		Message: fmt.Sprintf("Welcome back %s!", account.DisplayName),
		Profile: d.profileView(account, now),
	}
}

func handleCmds(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	if _, err := d.svc.GetProfile(caller.ID); err != nil {
		return resultFromError(err)
	}

	listing := make([]CommandHelp, 0, len(d.commands))
	for _, spec := range d.commands {
		if spec.adminOnly && caller.ID != d.adminID {
			continue
		}
		listing = append(listing, CommandHelp{Name: spec.name, Usage: spec.usage, AdminOnly: spec.adminOnly})
	}
	sort.Slice(listing, func(i, j int) bool {
		if listing[i].AdminOnly != listing[j].AdminOnly {
			return !listing[i].AdminOnly
		}
		return listing[i].Name < listing[j].Name
	})
	return Result{Kind: KindOK, Message: "Available commands", Commands: listing}
}

func handleCredits(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	account, err := d.svc.GetProfile(caller.ID)
	if err != nil {
		return resultFromError(err)
	}
	affordable, price, err := d.svc.QuoteAffordableSearches(account)
	if err != nil {
		return resultFromError(err)
	}
	msg := "You have enough credits to search."
	if affordable == 0 {
		msg = "Insufficient credits. Contact the administrator to top up."
	}
	return Result{
		Kind:    KindOK,
		Message: msg,
		Balance: &BalanceView{Credits: account.Credits, AffordableSearches: affordable, PricePerSearch: price},
	}
}

func handleProfile(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	account, err := d.svc.GetProfile(caller.ID)
	if err != nil {
		return resultFromError(err)
	}
	return Result{Kind: KindOK, Message: "Your profile", Profile: d.profileView(account, d.now())}
}

func handleLive(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	term := strings.Join(args, " ")
	receipt, err := d.svc.ChargeForSearch(ctx, caller.ID, term, d.now())
	if err != nil {
		return resultFromError(err)
	}
	return Result{
		Kind:    KindOK,
		Message: fmt.Sprintf("Search for %q completed: %d results.", receipt.Term, receipt.ResultCount),
		Receipt: &ReceiptView{
			Term:               receipt.Term,
			ResultCount:        receipt.ResultCount,
			CreditsCharged:     receipt.CreditsCharged,
			RemainingCredits:   receipt.RemainingCredits,
			AffordableSearches: receipt.AffordableSearches,
		},
	}
}

func handleAddUser(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	values, ok := parseIntArgs(args, 3)
	if !ok {
		return badIntArgs(d.commands["adduser"])
	}
	id, credits, days := values[0], values[1], values[2]

	handle := fmt.Sprintf("user_%d", id)
	if err := d.svc.RegisterOrRenew(id, handle, "Added by admin", credits, int(days), d.now()); err != nil {
		return resultFromError(err)
	}
	return Result{
		Kind:    KindOK,
		Message: fmt.Sprintf("Account %d registered with %d credits for %d days.", id, credits, days),
	}
}

func handleRemoveUser(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	values, ok := parseIntArgs(args, 1)
	if !ok {
		return badIntArgs(d.commands["removeuser"])
	}
	id := values[0]
	if err := d.svc.Disable(id); err != nil {
		return resultFromError(err)
	}
	return Result{Kind: KindOK, Message: fmt.Sprintf("Account %d disabled.", id)}
}

func handleSetPrice(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	values, ok := parseIntArgs(args, 1)
	if !ok {
		return badIntArgs(d.commands["setprice"])
	}
	price := values[0]
	if err := d.svc.SetPrice(price); err != nil {
		if errors.Is(err, entitlement.ErrInvalidPrice) {
			return Result{Kind: KindBadArguments, Message: "Price must be a positive number of credits.", Usage: d.commands["setprice"].usage}
		}
		return resultFromError(err)
	}
	return Result{Kind: KindOK, Message: fmt.Sprintf("Price updated to %d credits per search.", price)}
}

func handleAddCredits(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	values, ok := parseIntArgs(args, 2)
	if !ok {
		return badIntArgs(d.commands["addcredits"])
	}
	id, amount := values[0], values[1]
	if err := d.svc.AddCredits(id, amount); err != nil {
		return resultFromError(err)
	}
	account, err := d.svc.GetProfile(id)
	if err != nil {
		return resultFromError(err)
	}
	return Result{
		Kind:    KindOK,
		Message: fmt.Sprintf("Added %d credits to account %d. Current balance: %d.", amount, id, account.Credits),
	}
}

func handleStats(ctx context.Context, d *Dispatcher, caller Caller, args []string) Result {
	stats, err := d.svc.SystemStats(d.now())
	if err != nil {
		return resultFromError(err)
	}
	return Result{
		Kind:    KindOK,
		Message: "System statistics",
		Stats: &StatsView{
			ActiveAccounts: stats.ActiveAccounts,
			SearchesToday:  stats.SearchesToday,
			PricePerSearch: stats.Price,
		},
	}
}
