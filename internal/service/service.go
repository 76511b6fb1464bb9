package service

import (
	"context"
	"errors"
	"time"

	"questlock/internal/model"

	"github.com/google/uuid"
)

var (
	ErrQuestNotFound       = errors.New("quest not found")
	ErrQuestNotStarted     = errors.New("quest not started")
	ErrQuestAlreadyStarted = errors.New("another quest is already in progress")
	ErrQuestAlreadyDone    = errors.New("quest already completed today")
	ErrExactAlarmDenied    = errors.New("exact alarm scheduling denied")
)

// Notification channels understood by the launcher shell.
const (
	ChannelSession  = "session"
	ChannelAlarm    = "alarm"
	ChannelSanction = "sanction"
)

type QuestStore interface {
	CreateQuest(ctx context.Context, quest *model.Quest) error
	GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error)
	GetAllQuests(ctx context.Context) ([]*model.Quest, error)
	UpdateQuest(ctx context.Context, quest *model.Quest) error
	DeleteQuest(ctx context.Context, id uuid.UUID) error
	StartQuest(ctx context.Context, id uuid.UUID, at time.Time) error
	CompleteQuest(ctx context.Context, id uuid.UUID, at time.Time, day string, reward int) error
	SetLiquidatedAt(ctx context.Context, id uuid.UUID, at time.Time) error
	SetPhoneBlockInvokedAt(ctx context.Context, id uuid.UUID, at time.Time) error
}

type UnlockerStore interface {
	GetBlockedUnlocker(ctx context.Context, unlockerID string) (*model.BlockedUnlocker, error)
	UpsertBlockedUnlocker(ctx context.Context, ban *model.BlockedUnlocker) error
	ListBlockedUnlockers(ctx context.Context, now time.Time) ([]*model.BlockedUnlocker, error)
}

type PenaltyLogStore interface {
	InsertPenaltyLog(ctx context.Context, entry *model.PenaltyLog) error
	ListPenaltyLogs(ctx context.Context, limit int) ([]*model.PenaltyLog, error)
}

// Wallet is the enforcement-facing slice of the gamification economy.
type Wallet interface {
	Balance(ctx context.Context) (int, error)
	Deduct(ctx context.Context, amount int) error
}

type LedgerStore interface {
	SaveLedgerSnapshot(ctx context.Context, namespace string, entries map[string]int64) error
	LoadLedgerSnapshot(ctx context.Context, namespace string) (map[string]int64, error)
}

type Notifier interface {
	Show(ctx context.Context, title, message, channel string) error
}

// ForegroundSource answers which application is currently in the
// foreground. An empty package id means nothing was detected this tick.
type ForegroundSource interface {
	CurrentApp(ctx context.Context) (string, error)
}

// DeviceControl is the shell's surface-manipulation capability.
type DeviceControl interface {
	GoHome(ctx context.Context) error
	ShowLockScreen(ctx context.Context, packageID string) error
	DismissLockScreen(ctx context.Context) error
}

// AlarmTransport is the OS exact-time callback facility. Schedule returns
// ErrExactAlarmDenied when exact scheduling is unavailable; callers fall
// back to ScheduleInexact.
type AlarmTransport interface {
	Schedule(ctx context.Context, fireAt time.Time, requestID int, payload model.AlarmPayload) error
	ScheduleInexact(ctx context.Context, fireAt time.Time, requestID int, payload model.AlarmPayload) error
	Cancel(ctx context.Context, requestID int) error
}

// LockdownClient invokes the opaque external lock-down endpoint.
type LockdownClient interface {
	Invoke(ctx context.Context, endpoint string) error
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// deadlineOfDay resolves minutes-from-midnight against t's local day.
func deadlineOfDay(t time.Time, deadlineMinutes int) time.Time {
	return startOfDay(t).Add(time.Duration(deadlineMinutes) * time.Minute)
}

func localDate(t time.Time) string {
	return t.Format(model.DateString)
}
