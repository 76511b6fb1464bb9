package service

import (
	"context"
	"sync"
	"time"

	"questlock/pkg/logger"

	"go.uber.org/zap"
)

const ledgerNamespace = "app_lock"

// UnlockLedger decides whether an application is blocked right now. Apps in
// the permanent set are locked by default; a cooldown entry makes one
// temporarily usable until its expiry. Expired entries revert to the
// default-locked state and are purged on first read.
type UnlockLedger struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	permanent map[string]struct{}
	store     LedgerStore
	onGrant   func(packageID string, until time.Time)
	now       func() time.Time
}

func NewUnlockLedger(store LedgerStore, permanentLocks []string) *UnlockLedger {
	permanent := make(map[string]struct{}, len(permanentLocks))
	for _, p := range permanentLocks {
		permanent[p] = struct{}{}
	}
	return &UnlockLedger{
		entries:   make(map[string]time.Time),
		permanent: permanent,
		store:     store,
		now:       time.Now,
	}
}

// SetGrantHook registers the monitor's recheck scheduler and replays the
// hook for every entry already in the ledger, so cooldowns restored before
// the monitor existed still get their expiry recheck.
func (l *UnlockLedger) SetGrantHook(fn func(packageID string, until time.Time)) {
	l.mu.Lock()
	l.onGrant = fn
	entries := make(map[string]time.Time, len(l.entries))
	for pkg, until := range l.entries {
		entries[pkg] = until
	}
	l.mu.Unlock()

	for pkg, until := range entries {
		fn(pkg, until)
	}
}

// Hydrate loads the persisted snapshot so a process restart does not
// silently re-lock an app mid-cooldown. Entries already expired at load
// are dropped, which also invalidates cooldowns from a previous boot.
// Survivors are announced through the grant hook when one is installed.
func (l *UnlockLedger) Hydrate(ctx context.Context) error {
	snapshot, err := l.store.LoadLedgerSnapshot(ctx, ledgerNamespace)
	if err != nil {
		return err
	}

	now := l.now()
	restored := make(map[string]time.Time)

	l.mu.Lock()
	for pkg, expiryMillis := range snapshot {
		expiry := time.UnixMilli(expiryMillis)
		if expiry.After(now) {
			l.entries[pkg] = expiry
			restored[pkg] = expiry
		}
	}
	hook := l.onGrant
	l.mu.Unlock()

	if hook != nil {
		for pkg, until := range restored {
			hook(pkg, until)
		}
	}
	return nil
}

// IsBlocked reports the verdict for packageID. When a cooldown is active
// the second return value is its expiry. An expired entry is deleted as a
// side effect and the app reports blocked again.
func (l *UnlockLedger) IsBlocked(packageID string) (bool, *time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.entries[packageID]
	if ok {
		if l.now().Before(expiry) {
			return false, &expiry
		}
		delete(l.entries, packageID)
		l.persistLocked()
		return true, nil
	}

	_, permanent := l.permanent[packageID]
	return permanent, nil
}

// GrantCooldown upserts the entry; the last grant wins. A failed snapshot
// save rolls the entry back so a grant the caller saw fail cannot leave
// the app unlocked. The monitor is told to re-evaluate the package at
// expiry through the grant hook.
func (l *UnlockLedger) GrantCooldown(ctx context.Context, packageID string, until time.Time) error {
	l.mu.Lock()
	prev, existed := l.entries[packageID]
	l.entries[packageID] = until
	if err := l.store.SaveLedgerSnapshot(ctx, ledgerNamespace, l.snapshotLocked()); err != nil {
		if existed {
			l.entries[packageID] = prev
		} else {
			delete(l.entries, packageID)
		}
		l.mu.Unlock()
		return err
	}
	hook := l.onGrant
	l.mu.Unlock()

	if hook != nil {
		hook(packageID, until)
	}
	return nil
}

func (l *UnlockLedger) Revoke(ctx context.Context, packageID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, packageID)
	return l.store.SaveLedgerSnapshot(ctx, ledgerNamespace, l.snapshotLocked())
}

// IsPermanentlyLocked reports membership in the static locked set.
func (l *UnlockLedger) IsPermanentlyLocked(packageID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.permanent[packageID]
	return ok
}

func (l *UnlockLedger) snapshotLocked() map[string]int64 {
	snapshot := make(map[string]int64, len(l.entries))
	for pkg, expiry := range l.entries {
		snapshot[pkg] = expiry.UnixMilli()
	}
	return snapshot
}

// persistLocked is the best-effort variant for purge side effects; a
// failed write only delays the purge until the next successful save.
func (l *UnlockLedger) persistLocked() {
	if err := l.store.SaveLedgerSnapshot(context.Background(), ledgerNamespace, l.snapshotLocked()); err != nil {
		logger.Logger().Warn("failed to persist unlock ledger", zap.Error(err))
	}
}
