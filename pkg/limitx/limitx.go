// Package limitx implements fixed-window abuse counters keyed by
// (action, identity). The counter state lives behind the CounterStore
// interface: MemoryStore for single-instance deployments, RedisStore when
// several instances must share limits.
package limitx

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Action scopes a counter to one kind of operation so that, say, login
// attempts never eat into the password-reset budget.
type Action string

const (
	ActionLogin             Action = "login"
	ActionRegistration      Action = "registration"
	ActionEmailVerification Action = "email-verification"
	ActionPasswordReset     Action = "password-reset"
	ActionTwoFactor         Action = "two-factor"
	ActionFeedback          Action = "feedback"
)

// Policy defines the budget for one action. FailOpen controls behavior when
// the counter store is unreachable: critical actions (login, reset, 2FA)
// stay closed, everything else degrades to allowing the request.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
	FailOpen    bool
}

// DefaultPolicies returns the production budgets per action.
func DefaultPolicies() map[Action]Policy {
	return map[Action]Policy{
		ActionLogin:             {MaxAttempts: 5, Window: 15 * time.Minute},
		ActionRegistration:      {MaxAttempts: 10, Window: time.Hour, FailOpen: true},
		ActionEmailVerification: {MaxAttempts: 10, Window: time.Hour, FailOpen: true},
		ActionPasswordReset:     {MaxAttempts: 3, Window: time.Hour},
		ActionTwoFactor:         {MaxAttempts: 5, Window: 5 * time.Minute},
		ActionFeedback:          {MaxAttempts: 10, Window: time.Hour, FailOpen: true},
	}
}

var (
	// ErrStoreUnavailable reports that the counter store could not be
	// reached and the action's policy is fail-closed.
	ErrStoreUnavailable = errors.New("limitx: counter store unavailable")

	// ErrUnknownAction reports a check against an action without a policy.
	ErrUnknownAction = errors.New("limitx: unknown action")
)

// Result is the outcome of a CheckAndRecord call. RetryAfter is only set
// when the attempt was denied.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Blocked describes one currently blocked counter key.
type Blocked struct {
	Key       string
	Count     int
	Remaining time.Duration
}

// Entry is a raw counter record as held by a CounterStore.
type Entry struct {
	Key     string
	Count   int
	ResetAt time.Time
}

// CounterStore is the narrow storage interface the limiter runs on. Incr
// must serialize the read-increment-write per key so concurrent attempts
// never undercount, and must not hold any lock across network I/O.
type CounterStore interface {
	// Incr records one attempt against key, starting a fresh window when
	// none is active, and returns the attempt count and window reset time.
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)

	// Entries lists all live counter records.
	Entries(ctx context.Context) ([]Entry, error)

	// DeleteIdentity removes all counters for one identity across every
	// action. Returns how many were removed.
	DeleteIdentity(ctx context.Context, identity string) (int, error)

	// Clear removes every counter and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}

// Limiter applies per-action policies over a CounterStore.
type Limiter struct {
	store    CounterStore
	policies map[Action]Policy
}

func New(store CounterStore, policies map[Action]Policy) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Limiter{store: store, policies: policies}
}

// CheckAndRecord counts one attempt for (action, identity) and reports
// whether it is still within budget. Exceeding the budget blocks the key for
// the remainder of the window regardless of further attempts.
func (l *Limiter) CheckAndRecord(ctx context.Context, action Action, identity string) (Result, error) {
	policy, ok := l.policies[action]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	key := counterKey(action, identity)
	count, resetAt, err := l.store.Incr(ctx, key, policy.Window)
	if err != nil {
		if policy.FailOpen {
			return Result{Allowed: true}, nil
		}
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if count > policy.MaxAttempts {
		retry := time.Until(resetAt)
		if retry < time.Second {
			retry = time.Second
		}
		return Result{Allowed: false, RetryAfter: retry}, nil
	}

	return Result{Allowed: true}, nil
}

// Unblock clears every counter held against identity, across all actions.
func (l *Limiter) Unblock(ctx context.Context, identity string) (int, error) {
	return l.store.DeleteIdentity(ctx, NormalizeIdentity(identity))
}

// ClearAll wipes every counter and returns how many were removed.
func (l *Limiter) ClearAll(ctx context.Context) (int, error) {
	return l.store.Clear(ctx)
}

// ListBlocked returns the keys currently over budget with their remaining
// block time.
func (l *Limiter) ListBlocked(ctx context.Context) ([]Blocked, error) {
	entries, err := l.store.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	var blocked []Blocked
	for _, e := range entries {
		if !e.ResetAt.After(now) {
			continue
		}

		action, _, ok := splitKey(e.Key)
		if !ok {
			continue
		}
		policy, ok := l.policies[action]
		if !ok {
			continue
		}

		if e.Count > policy.MaxAttempts {
			blocked = append(blocked, Blocked{
				Key:       e.Key,
				Count:     e.Count,
				Remaining: e.ResetAt.Sub(now),
			})
		}
	}

	return blocked, nil
}

// NormalizeIdentity canonicalizes a limiter identity: emails are lower-cased
// and trimmed, IP addresses reduced to their canonical textual form so
// "::FFFF:10.0.0.1" and "10.0.0.1" count against the same key.
func NormalizeIdentity(identity string) string {
	identity = strings.ToLower(strings.TrimSpace(identity))

	if addr, err := netip.ParseAddr(identity); err == nil {
		return addr.Unmap().String()
	}

	return identity
}

// counterKey builds "action:identity". Actions never contain a colon, so the
// identity part (which may, for IPv6) is everything after the first one.
func counterKey(action Action, identity string) string {
	return string(action) + ":" + NormalizeIdentity(identity)
}

func splitKey(key string) (Action, string, bool) {
	action, identity, ok := strings.Cut(key, ":")
	if !ok {
		return "", "", false
	}
	return Action(action), identity, true
}

// identityOf extracts the identity part of a counter key.
func identityOf(key string) string {
	_, identity, _ := strings.Cut(key, ":")
	return identity
}
