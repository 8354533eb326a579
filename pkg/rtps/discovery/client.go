package discovery

import (
	"sync"
	"time"

	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// DefaultClientResyncPeriod is how often a Discovery-Server client
// re-announces to its configured servers when its last announcement may
// have been missed, independent of the steady-state SPDP resend (spec.md
// §4.6 Discovery-Server mode, grounded on original_source's
// DSClientEvent2).
const DefaultClientResyncPeriod = 5 * time.Second

// ClientConfig selects Discovery-Server (client) mode: rather than
// multicasting to the whole domain, SPDP announcements go only to the
// configured server locators, and a second timer independent of the
// steady-state resend re-announces while this client has heard back from
// fewer servers than it is configured with (spec.md §6 discovery.servers[], supplemented from
// original_source's PDPClient2/DSClientEvent2).
type ClientConfig struct {
	Servers      []types.Locator
	ResyncPeriod time.Duration
}

// Client layers Discovery-Server resync behavior on top of a SimplePDP
// already configured to announce only to cfg.Servers. It tracks which
// servers have acknowledged this participant (by having been observed in
// ParticipantDiscovered) and, on each ResyncPeriod, while fewer servers
// have been seen than are configured, re-announces through the PDP to all
// of its destinations (not only the servers still unseen), the same "did this converge yet, if not nudge it again" shape as
// StatefulWriter's own heartbeat/ACKNACK loop, one level up.
type Client struct {
	mu     sync.Mutex
	pdp    *SimplePDP
	cfg    ClientConfig
	sched  *scheduler.Scheduler
	timer  *scheduler.Timer
	synced map[types.GuidPrefix]bool
}

// NewClient wraps pdp with Discovery-Server client resync behavior.
func NewClient(pdp *SimplePDP, cfg ClientConfig, sched *scheduler.Scheduler) *Client {
	if cfg.ResyncPeriod == 0 {
		cfg.ResyncPeriod = DefaultClientResyncPeriod
	}
	c := &Client{pdp: pdp, cfg: cfg, sched: sched, synced: make(map[types.GuidPrefix]bool)}
	c.timer = sched.NewTimer(c.fireResync)
	return c
}

// Start begins the resync timer alongside the PDP's own announce/resend
// schedule.
func (c *Client) Start() {
	c.timer.Restart(c.cfg.ResyncPeriod)
}

// Stop cancels the resync timer.
func (c *Client) Stop() {
	c.timer.Cancel()
}

// NoteServerSeen marks prefix as a server this client has heard an
// announcement from; once as many servers have been seen as are
// configured, the resync timer stops re-announcing.
func (c *Client) NoteServerSeen(prefix types.GuidPrefix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synced[prefix] = true
}

func (c *Client) fireResync() {
	c.mu.Lock()
	behind := len(c.synced) < len(c.cfg.Servers)
	c.mu.Unlock()
	if behind {
		c.pdp.Announce()
	}
	c.timer.Restart(c.cfg.ResyncPeriod)
}
