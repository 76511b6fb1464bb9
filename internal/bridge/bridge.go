// Package bridge talks to the native shell's localhost device agent: the
// foreground-app signal, surface actions, and the exact-alarm facility all
// live on the other side of this HTTP boundary.
package bridge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"questlock/internal/model"
	"questlock/internal/service"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	AgentURL string `yaml:"agentUrl"`
	Timeout  time.Duration
}

type Agent struct {
	client *resty.Client
}

func New(cfg Config) *Agent {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.AgentURL).
		SetTimeout(cfg.Timeout)

	return &Agent{client: client}
}

type resumedEventResponse struct {
	Package   string `json:"package"`
	ResumedAt int64  `json:"resumed_at_ms"`
}

func (a *Agent) LatestResumed(ctx context.Context) (*service.ResumedEvent, error) {
	var out resumedEventResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/foreground/events/latest")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("agent returned %s", resp.Status())
	}

	return &service.ResumedEvent{
		PackageID: out.Package,
		At:        time.UnixMilli(out.ResumedAt),
	}, nil
}

func (a *Agent) RecentPackage(ctx context.Context, window time.Duration) (string, error) {
	var out struct {
		Package string `json:"package"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("window_seconds", fmt.Sprintf("%d", int(window.Seconds()))).
		SetResult(&out).
		Get("/foreground/usage")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() == http.StatusNoContent {
		return "", nil
	}
	if resp.IsError() {
		return "", fmt.Errorf("agent returned %s", resp.Status())
	}
	return out.Package, nil
}

func (a *Agent) GoHome(ctx context.Context) error {
	return a.post(ctx, "/actions/home", nil)
}

func (a *Agent) ShowLockScreen(ctx context.Context, packageID string) error {
	return a.post(ctx, "/actions/lock", map[string]string{"package": packageID})
}

func (a *Agent) DismissLockScreen(ctx context.Context) error {
	return a.post(ctx, "/actions/unlock", nil)
}

type scheduleRequest struct {
	FireAtMillis int64              `json:"fire_at_ms"`
	RequestID    int                `json:"request_id"`
	Payload      model.AlarmPayload `json:"payload"`
}

func (a *Agent) Schedule(ctx context.Context, fireAt time.Time, requestID int, payload model.AlarmPayload) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(scheduleRequest{
			FireAtMillis: fireAt.UnixMilli(),
			RequestID:    requestID,
			Payload:      payload,
		}).
		Post("/alarms/exact")
	if err != nil {
		return err
	}
	// The agent answers 403 when OS power policy denies exact alarms.
	if resp.StatusCode() == http.StatusForbidden {
		return service.ErrExactAlarmDenied
	}
	if resp.IsError() {
		return fmt.Errorf("agent returned %s", resp.Status())
	}
	return nil
}

func (a *Agent) ScheduleInexact(ctx context.Context, fireAt time.Time, requestID int, payload model.AlarmPayload) error {
	return a.post(ctx, "/alarms/inexact", scheduleRequest{
		FireAtMillis: fireAt.UnixMilli(),
		RequestID:    requestID,
		Payload:      payload,
	})
}

func (a *Agent) Cancel(ctx context.Context, requestID int) error {
	resp, err := a.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/alarms/%d", requestID))
	if err != nil {
		return err
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("agent returned %s", resp.Status())
	}
	return nil
}

func (a *Agent) post(ctx context.Context, path string, body interface{}) error {
	req := a.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("agent returned %s", resp.Status())
	}
	return nil
}

// Lockdown posts to the opaque external lock-down endpoint. No response
// contract is assumed: a delivered request is a discharged obligation.
type Lockdown struct {
	client *resty.Client
}

func NewLockdown(timeout time.Duration) *Lockdown {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Lockdown{client: resty.New().SetTimeout(timeout)}
}

func (l *Lockdown) Invoke(ctx context.Context, endpoint string) error {
	_, err := l.client.R().SetContext(ctx).Post(endpoint)
	return err
}
