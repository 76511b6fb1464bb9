// Package mocks provides testify mocks for the service-layer interfaces.
package mocks

import (
	"context"
	"time"

	"questlock/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockQuestStore struct {
	mock.Mock
}

func (m *MockQuestStore) CreateQuest(ctx context.Context, quest *model.Quest) error {
	args := m.Called(ctx, quest)
	return args.Error(0)
}

func (m *MockQuestStore) GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Quest), args.Error(1)
}

func (m *MockQuestStore) GetAllQuests(ctx context.Context) ([]*model.Quest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Quest), args.Error(1)
}

func (m *MockQuestStore) UpdateQuest(ctx context.Context, quest *model.Quest) error {
	args := m.Called(ctx, quest)
	return args.Error(0)
}

func (m *MockQuestStore) DeleteQuest(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuestStore) StartQuest(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockQuestStore) CompleteQuest(ctx context.Context, id uuid.UUID, at time.Time, day string, reward int) error {
	args := m.Called(ctx, id, at, day, reward)
	return args.Error(0)
}

func (m *MockQuestStore) SetLiquidatedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockQuestStore) SetPhoneBlockInvokedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockUnlockerStore struct {
	mock.Mock
}

func (m *MockUnlockerStore) GetBlockedUnlocker(ctx context.Context, unlockerID string) (*model.BlockedUnlocker, error) {
	args := m.Called(ctx, unlockerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BlockedUnlocker), args.Error(1)
}

func (m *MockUnlockerStore) UpsertBlockedUnlocker(ctx context.Context, ban *model.BlockedUnlocker) error {
	args := m.Called(ctx, ban)
	return args.Error(0)
}

func (m *MockUnlockerStore) ListBlockedUnlockers(ctx context.Context, now time.Time) ([]*model.BlockedUnlocker, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BlockedUnlocker), args.Error(1)
}

type MockPenaltyLogStore struct {
	mock.Mock
}

func (m *MockPenaltyLogStore) InsertPenaltyLog(ctx context.Context, entry *model.PenaltyLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockPenaltyLogStore) ListPenaltyLogs(ctx context.Context, limit int) ([]*model.PenaltyLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PenaltyLog), args.Error(1)
}

type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Balance(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockWallet) Deduct(ctx context.Context, amount int) error {
	args := m.Called(ctx, amount)
	return args.Error(0)
}

type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) SaveLedgerSnapshot(ctx context.Context, namespace string, entries map[string]int64) error {
	args := m.Called(ctx, namespace, entries)
	return args.Error(0)
}

func (m *MockLedgerStore) LoadLedgerSnapshot(ctx context.Context, namespace string) (map[string]int64, error) {
	args := m.Called(ctx, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Show(ctx context.Context, title, message, channel string) error {
	args := m.Called(ctx, title, message, channel)
	return args.Error(0)
}

type MockForegroundSource struct {
	mock.Mock
}

func (m *MockForegroundSource) CurrentApp(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockDeviceControl struct {
	mock.Mock
}

func (m *MockDeviceControl) GoHome(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDeviceControl) ShowLockScreen(ctx context.Context, packageID string) error {
	args := m.Called(ctx, packageID)
	return args.Error(0)
}

func (m *MockDeviceControl) DismissLockScreen(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockAlarmTransport struct {
	mock.Mock
}

func (m *MockAlarmTransport) Schedule(ctx context.Context, fireAt time.Time, requestID int, payload model.AlarmPayload) error {
	args := m.Called(ctx, fireAt, requestID, payload)
	return args.Error(0)
}

func (m *MockAlarmTransport) ScheduleInexact(ctx context.Context, fireAt time.Time, requestID int, payload model.AlarmPayload) error {
	args := m.Called(ctx, fireAt, requestID, payload)
	return args.Error(0)
}

func (m *MockAlarmTransport) Cancel(ctx context.Context, requestID int) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

type MockLockdownClient struct {
	mock.Mock
}

func (m *MockLockdownClient) Invoke(ctx context.Context, endpoint string) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}

type MockUsageSource struct {
	mock.Mock
}

func (m *MockUsageSource) RecentPackage(ctx context.Context, window time.Duration) (string, error) {
	args := m.Called(ctx, window)
	return args.String(0), args.Error(1)
}
