package service

import (
	"context"
	"time"

	"questlock/internal/metrics"
	"questlock/pkg/logger"

	"go.uber.org/zap"
)

type MonitorMode string

const (
	// MonitorGoHome returns the user to the home screen on a block.
	MonitorGoHome MonitorMode = "home"
	// MonitorOverlay raises a full-screen lock surface instead.
	MonitorOverlay MonitorMode = "overlay"
)

const recheckRetryDelay = 60 * time.Second

// lockState tracks which package the lock surface is covering, owned by
// the monitor and exposed only through its interface.
type lockState struct {
	active    bool
	packageID string
}

type MonitorConfig struct {
	Interval   time.Duration
	Mode       MonitorMode
	ExemptApps []string
}

// Monitor is the foreground-app poll loop. A single goroutine owns every
// ledger evaluation; cooldown rechecks are delivered onto the same loop
// through recheckCh, so no further synchronization is needed between them.
type Monitor struct {
	ledger  *UnlockLedger
	source  ForegroundSource
	device  DeviceControl
	metrics *metrics.Metrics

	interval  time.Duration
	mode      MonitorMode
	exempt    map[string]struct{}
	recheckCh chan string

	lastSeen string
	lock     lockState

	now func() time.Time
	log *zap.Logger
}

func NewMonitor(ledger *UnlockLedger, source ForegroundSource, device DeviceControl, m *metrics.Metrics, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if cfg.Mode == "" {
		cfg.Mode = MonitorGoHome
	}

	exempt := make(map[string]struct{}, len(cfg.ExemptApps))
	for _, p := range cfg.ExemptApps {
		exempt[p] = struct{}{}
	}

	mon := &Monitor{
		ledger:    ledger,
		source:    source,
		device:    device,
		metrics:   m,
		interval:  cfg.Interval,
		mode:      cfg.Mode,
		exempt:    exempt,
		recheckCh: make(chan string, 16),
		now:       time.Now,
		log:       logger.Logger(),
	}

	ledger.SetGrantHook(mon.scheduleRecheck)
	return mon
}

// Run polls until ctx is done. The loop never terminates on its own:
// signal failures skip the tick.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("foreground monitor started",
		zap.Duration("interval", m.interval),
		zap.String("mode", string(m.mode)))

	for {
		select {
		case <-ctx.Done():
			m.log.Info("foreground monitor stopped")
			return
		case pkg := <-m.recheckCh:
			if err := m.recheck(ctx, pkg); err != nil {
				m.log.Warn("cooldown recheck failed, retrying",
					zap.String("package", pkg), zap.Error(err))
				m.retryRecheckLater(pkg)
			}
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	pkg, err := m.source.CurrentApp(ctx)
	if err != nil {
		m.log.Debug("foreground query failed", zap.Error(err))
		return
	}
	if pkg == "" {
		return
	}

	// Self-healing: if the lock surface should be showing but the OS
	// pushed another app in front, re-assert it.
	if m.lock.active && pkg != m.lock.packageID && !m.isExempt(pkg) {
		if err := m.device.ShowLockScreen(ctx, m.lock.packageID); err != nil {
			m.log.Warn("failed to re-assert lock surface", zap.Error(err))
		}
	}

	if pkg == m.lastSeen {
		return
	}

	// The package only becomes "seen" once its verdict was acted on, so a
	// failed enforcement is retried on the next tick instead of being
	// debounced away.
	if m.evaluate(ctx, pkg) {
		m.lastSeen = pkg
	}
}

func (m *Monitor) evaluate(ctx context.Context, pkg string) bool {
	if m.isExempt(pkg) {
		return true
	}

	blocked, _ := m.ledger.IsBlocked(pkg)
	if !blocked {
		if m.lock.active && m.lock.packageID == pkg {
			if err := m.device.DismissLockScreen(ctx); err != nil {
				m.log.Warn("failed to dismiss lock surface", zap.Error(err))
				return false
			}
			m.lock = lockState{}
		}
		return true
	}

	return m.enforce(ctx, pkg)
}

func (m *Monitor) enforce(ctx context.Context, pkg string) bool {
	var err error
	switch m.mode {
	case MonitorOverlay:
		err = m.device.ShowLockScreen(ctx, pkg)
		if err == nil {
			m.lock = lockState{active: true, packageID: pkg}
		}
	default:
		err = m.device.GoHome(ctx)
	}
	if err != nil {
		m.log.Warn("failed to enforce block", zap.String("package", pkg), zap.Error(err))
		return false
	}

	if m.metrics != nil {
		m.metrics.BlocksEnforced.Inc()
	}
	m.log.Info("blocked app enforced", zap.String("package", pkg))
	return true
}

// recheck handles a cooldown expiring: the package's ledger entry is
// re-evaluated and, if the app is still in the foreground, the block is
// enforced immediately instead of waiting for the next changed-package tick.
func (m *Monitor) recheck(ctx context.Context, pkg string) error {
	blocked, _ := m.ledger.IsBlocked(pkg)
	if !blocked {
		return nil
	}

	current, err := m.source.CurrentApp(ctx)
	if err != nil {
		return err
	}
	if current != pkg {
		return nil
	}

	switch m.mode {
	case MonitorOverlay:
		if err := m.device.ShowLockScreen(ctx, pkg); err != nil {
			return err
		}
		m.lock = lockState{active: true, packageID: pkg}
	default:
		if err := m.device.GoHome(ctx); err != nil {
			return err
		}
	}

	if m.metrics != nil {
		m.metrics.BlocksEnforced.Inc()
	}
	return nil
}

// scheduleRecheck arms a one-shot recheck at the cooldown's expiry so the
// monitor does not depend on the poll loop noticing the lapse.
func (m *Monitor) scheduleRecheck(pkg string, until time.Time) {
	delay := until.Sub(m.now())
	if delay < 0 {
		delay = 0
	}
	time.AfterFunc(delay, func() {
		m.enqueueRecheck(pkg)
	})
}

// retryRecheckLater re-arms a failed recheck; an unresolved cooldown must
// never silently vanish.
func (m *Monitor) retryRecheckLater(pkg string) {
	time.AfterFunc(recheckRetryDelay, func() {
		m.enqueueRecheck(pkg)
	})
}

func (m *Monitor) enqueueRecheck(pkg string) {
	select {
	case m.recheckCh <- pkg:
	default:
		// Channel full: the loop is busy, retry shortly instead of dropping.
		m.retryRecheckLater(pkg)
	}
}

func (m *Monitor) isExempt(pkg string) bool {
	_, ok := m.exempt[pkg]
	return ok
}
