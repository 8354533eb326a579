package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtps-io/rtps-core/pkg/rtps/scheduler"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

func TestClientFireResyncAnnouncesWhenNotSynced(t *testing.T) {
	pdp, sender, _ := newTestPDP(t)
	sched := scheduler.New()
	cfg := ClientConfig{
		Servers:      []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7400}},
		ResyncPeriod: time.Hour,
	}
	c := NewClient(pdp, cfg, sched)

	before := sender.count()
	c.fireResync()

	assert.Equal(t, before+1, sender.count(), "fireResync must re-announce while a configured server is still unsynced")
}

func TestClientFireResyncStopsAnnouncingOnceAllServersSynced(t *testing.T) {
	pdp, sender, _ := newTestPDP(t)
	sched := scheduler.New()
	server := types.GuidPrefix{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}
	cfg := ClientConfig{
		Servers:      []types.Locator{{Kind: types.LocatorKindUDPv4, Port: 7400}},
		ResyncPeriod: time.Hour,
	}
	c := NewClient(pdp, cfg, sched)

	c.NoteServerSeen(server)

	before := sender.count()
	c.fireResync()

	assert.Equal(t, before, sender.count(), "fireResync must stop nudging once every configured server has been seen")
}

func TestClientStartAndStopControlTheResyncTimer(t *testing.T) {
	pdp, _, _ := newTestPDP(t)
	sched := scheduler.New()
	cfg := ClientConfig{ResyncPeriod: time.Hour}
	c := NewClient(pdp, cfg, sched)

	c.Start()
	require.Equal(t, scheduler.StateWaiting, c.timer.State())

	c.Stop()
	assert.Equal(t, scheduler.StateInactive, c.timer.State())
}

func TestNewClientDefaultsResyncPeriod(t *testing.T) {
	pdp, _, _ := newTestPDP(t)
	sched := scheduler.New()
	c := NewClient(pdp, ClientConfig{}, sched)

	assert.Equal(t, DefaultClientResyncPeriod, c.cfg.ResyncPeriod)
}
