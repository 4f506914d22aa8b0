// Package notify fans cycle and failure summaries out to configured
// channels. Channel failures are recorded, never raised.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/danshapiro/wdib/internal/envutil"
	"github.com/danshapiro/wdib/internal/gitutil"
	"github.com/danshapiro/wdib/internal/publish"
)

// DeliveryResult is one channel's outcome, recorded as a
// NOTIFICATION_SENT or NOTIFICATION_FAILED event by the engine.
type DeliveryResult struct {
	Channel      string `json:"channel"`
	Sent         bool   `json:"sent"`
	Reason       string `json:"reason,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`
}

// CycleContext is everything a provider needs for a cycle summary.
type CycleContext struct {
	Status  *publish.PublicStatus
	Git     gitutil.CommitInfo
	RunDate string
}

// FailureContext is everything a provider needs for a failure alert.
type FailureContext struct {
	DeviceID string
	CycleID  string
	Day      int
	TS       time.Time
}

// Provider is one registered notification channel.
type Provider struct {
	Name          string
	IsConfigured  func() bool
	NotifyCycle   func(CycleContext) DeliveryResult
	NotifyFailure func(FailureContext) DeliveryResult
}

// Router dispatches to providers named in WDIB_NOTIFICATION_CHANNELS.
type Router struct {
	providers map[string]Provider
}

// NewRouter registers the built-in webhook provider.
func NewRouter() *Router {
	r := &Router{providers: map[string]Provider{}}
	r.Register(webhookProvider())
	return r
}

func (r *Router) Register(p Provider) {
	r.providers[strings.ToLower(p.Name)] = p
}

func channelNames() []string {
	raw := envutil.Str("WDIB_NOTIFICATION_CHANNELS", "")
	if raw == "" {
		return nil
	}
	var names []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name != "" && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	return names
}

func (r *Router) dispatch(channel string, call func(Provider) DeliveryResult) (result DeliveryResult) {
	provider, ok := r.providers[channel]
	if !ok {
		return DeliveryResult{Channel: channel, Reason: "channel is not registered"}
	}
	if !provider.IsConfigured() {
		return DeliveryResult{Channel: provider.Name, Reason: "channel is not configured"}
	}
	defer func() {
		if p := recover(); p != nil {
			result = DeliveryResult{
				Channel: provider.Name,
				Reason:  fmt.Sprintf("channel notify failed: %v", p),
			}
		}
	}()
	result = call(provider)
	result.Channel = provider.Name
	return result
}

// SendCycle delivers the cycle summary to every configured channel.
func (r *Router) SendCycle(ctx CycleContext) []DeliveryResult {
	var results []DeliveryResult
	for _, channel := range channelNames() {
		results = append(results, r.dispatch(channel, func(p Provider) DeliveryResult {
			return p.NotifyCycle(ctx)
		}))
	}
	return results
}

// SendFailure delivers a failure alert to every configured channel.
func (r *Router) SendFailure(ctx FailureContext) []DeliveryResult {
	var results []DeliveryResult
	for _, channel := range channelNames() {
		results = append(results, r.dispatch(channel, func(p Provider) DeliveryResult {
			return p.NotifyFailure(ctx)
		}))
	}
	return results
}
