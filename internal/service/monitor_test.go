package service

import (
	"context"
	"testing"
	"time"

	"questlock/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type monitorFixture struct {
	ledger  *UnlockLedger
	source  *mocks.MockForegroundSource
	device  *mocks.MockDeviceControl
	store   *mocks.MockLedgerStore
	monitor *Monitor
	now     time.Time
}

func newMonitorFixture(t *testing.T, mode MonitorMode, locked, exempt []string) *monitorFixture {
	t.Helper()

	f := &monitorFixture{
		source: &mocks.MockForegroundSource{},
		device: &mocks.MockDeviceControl{},
		store:  &mocks.MockLedgerStore{},
		now:    time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
	f.store.On("SaveLedgerSnapshot", mock.Anything, "app_lock", mock.Anything).Return(nil).Maybe()

	f.ledger = NewUnlockLedger(f.store, locked)
	f.ledger.now = func() time.Time { return f.now }

	f.monitor = NewMonitor(f.ledger, f.source, f.device, nil, MonitorConfig{
		Mode:       mode,
		ExemptApps: exempt,
	})
	f.monitor.now = func() time.Time { return f.now }
	return f
}

func TestMonitor_BlockedAppSentHome(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome, []string{"com.games.idle"}, nil)

	f.source.On("CurrentApp", mock.Anything).Return("com.games.idle", nil)
	f.device.On("GoHome", mock.Anything).Return(nil)

	f.monitor.tick(context.Background())

	f.device.AssertExpectations(t)
}

func TestMonitor_UnblockedAppIgnored(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome, []string{"com.games.idle"}, nil)

	f.source.On("CurrentApp", mock.Anything).Return("com.tools.calc", nil)

	f.monitor.tick(context.Background())

	f.device.AssertNotCalled(t, "GoHome")
	f.device.AssertNotCalled(t, "ShowLockScreen")
}

func TestMonitor_ExemptAppNeverEnforced(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome,
		[]string{"com.launcher.shell"}, []string{"com.launcher.shell"})

	f.source.On("CurrentApp", mock.Anything).Return("com.launcher.shell", nil)

	f.monitor.tick(context.Background())

	f.device.AssertNotCalled(t, "GoHome")
}

func TestMonitor_DebouncesUnchangedForeground(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome, []string{"com.games.idle"}, nil)

	f.source.On("CurrentApp", mock.Anything).Return("com.games.idle", nil)
	f.device.On("GoHome", mock.Anything).Return(nil)

	// Same package on consecutive ticks triggers a single evaluation.
	f.monitor.tick(context.Background())
	f.monitor.tick(context.Background())
	f.monitor.tick(context.Background())

	f.device.AssertNumberOfCalls(t, "GoHome", 1)
}

func TestMonitor_FailedEnforcementRetriedNextTick(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome, []string{"com.games.idle"}, nil)

	f.source.On("CurrentApp", mock.Anything).Return("com.games.idle", nil)
	f.device.On("GoHome", mock.Anything).Return(assert.AnError).Once()
	f.device.On("GoHome", mock.Anything).Return(nil)

	// The failed go-home must not debounce the package: the same
	// foreground app is re-enforced on the following tick.
	f.monitor.tick(context.Background())
	f.monitor.tick(context.Background())

	f.device.AssertNumberOfCalls(t, "GoHome", 2)

	// Once the enforcement landed, the debounce applies again.
	f.monitor.tick(context.Background())
	f.device.AssertNumberOfCalls(t, "GoHome", 2)
}

func TestMonitor_CooldownSuppressesEnforcement(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome, []string{"com.games.idle"}, nil)

	assert.NoError(t, f.ledger.GrantCooldown(context.Background(),
		"com.games.idle", f.now.Add(10*time.Minute)))

	f.source.On("CurrentApp", mock.Anything).Return("com.games.idle", nil)

	f.monitor.tick(context.Background())

	f.device.AssertNotCalled(t, "GoHome")
}

func TestMonitor_OverlayModeShowsAndDismisses(t *testing.T) {
	f := newMonitorFixture(t, MonitorOverlay, []string{"com.games.idle"}, nil)

	f.source.On("CurrentApp", mock.Anything).Return("com.games.idle", nil)
	f.device.On("ShowLockScreen", mock.Anything, "com.games.idle").Return(nil)

	f.monitor.tick(context.Background())
	f.device.AssertCalled(t, "ShowLockScreen", mock.Anything, "com.games.idle")

	// A cooldown arrives while the surface is up: the next evaluation of
	// the same package dismisses it.
	assert.NoError(t, f.ledger.GrantCooldown(context.Background(),
		"com.games.idle", f.now.Add(10*time.Minute)))
	f.device.On("DismissLockScreen", mock.Anything).Return(nil)

	f.monitor.evaluate(context.Background(), "com.games.idle")
	f.device.AssertCalled(t, "DismissLockScreen", mock.Anything)
}

func TestMonitor_ReassertsLockSurface(t *testing.T) {
	f := newMonitorFixture(t, MonitorOverlay, []string{"com.games.idle"}, []string{"com.launcher.shell"})

	f.source.On("CurrentApp", mock.Anything).Return("com.games.idle", nil).Once()
	f.device.On("ShowLockScreen", mock.Anything, "com.games.idle").Return(nil)

	f.monitor.tick(context.Background())

	// The OS swaps another blocked-agnostic app in front of the surface;
	// the next tick pushes the surface back.
	f.source.On("CurrentApp", mock.Anything).Return("com.other.app", nil)
	f.monitor.tick(context.Background())

	f.device.AssertNumberOfCalls(t, "ShowLockScreen", 2)
}

func TestMonitor_SignalFailureSkipsTick(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome, []string{"com.games.idle"}, nil)

	f.source.On("CurrentApp", mock.Anything).Return("", assert.AnError)

	f.monitor.tick(context.Background())

	f.device.AssertNotCalled(t, "GoHome")
}

func TestMonitor_RecheckEnforcesExpiredCooldown(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome, []string{"com.games.idle"}, nil)

	until := f.now.Add(10 * time.Minute)
	assert.NoError(t, f.ledger.GrantCooldown(context.Background(), "com.games.idle", until))

	// Expiry passes while the app sits in the foreground.
	f.now = until.Add(time.Second)

	f.source.On("CurrentApp", mock.Anything).Return("com.games.idle", nil)
	f.device.On("GoHome", mock.Anything).Return(nil)

	assert.NoError(t, f.monitor.recheck(context.Background(), "com.games.idle"))
	f.device.AssertCalled(t, "GoHome", mock.Anything)
}

func TestMonitor_RecheckNoopWhenAppLeft(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome, []string{"com.games.idle"}, nil)

	f.source.On("CurrentApp", mock.Anything).Return("com.tools.calc", nil)

	assert.NoError(t, f.monitor.recheck(context.Background(), "com.games.idle"))
	f.device.AssertNotCalled(t, "GoHome")
}

func TestMonitor_RecheckPropagatesSignalError(t *testing.T) {
	f := newMonitorFixture(t, MonitorGoHome, []string{"com.games.idle"}, nil)

	f.source.On("CurrentApp", mock.Anything).Return("", assert.AnError)

	err := f.monitor.recheck(context.Background(), "com.games.idle")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestReconcilingSource_PrefersFreshEvent(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	events := &fakeEventSource{event: &ResumedEvent{
		PackageID: "com.games.idle",
		At:        now.Add(-2 * time.Second),
	}}
	usage := &mocks.MockUsageSource{}

	src := NewReconcilingSource(events, usage, 5*time.Second).(*reconcilingSource)
	src.now = func() time.Time { return now }

	pkg, err := src.CurrentApp(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "com.games.idle", pkg)
	usage.AssertNotCalled(t, "RecentPackage")
}

func TestReconcilingSource_FallsBackToUsage(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	events := &fakeEventSource{event: &ResumedEvent{
		PackageID: "com.games.idle",
		At:        now.Add(-time.Minute),
	}}
	usage := &mocks.MockUsageSource{}
	usage.On("RecentPackage", mock.Anything, 5*time.Second).Return("com.tools.calc", nil)

	src := NewReconcilingSource(events, usage, 5*time.Second).(*reconcilingSource)
	src.now = func() time.Time { return now }

	pkg, err := src.CurrentApp(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "com.tools.calc", pkg)
	usage.AssertExpectations(t)
}

type fakeEventSource struct {
	event *ResumedEvent
	err   error
}

func (f *fakeEventSource) LatestResumed(ctx context.Context) (*ResumedEvent, error) {
	return f.event, f.err
}
