package participant

import (
	"sync"
	"time"

	"github.com/rtps-io/rtps-core/pkg/rtps/history"
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
	"github.com/rtps-io/rtps-core/pkg/rtps/wire"
)

// statusInfoDisposed / statusInfoUnregistered mirror the bit layout
// pkg/rtps/endpoint's buildInlineQos writes into PID_STATUS_INFO (RTPS 2.3
// §9.6.3.9); decodeInlineQos is that function's inverse.
const (
	statusInfoDisposed     = 1 << 0
	statusInfoUnregistered = 1 << 1
)

// decodeInlineQos recovers the instance handle and change kind a DATA/
// DATA_FRAG submessage's inline qos carries (spec.md §3, §4.3): PID_KEY_HASH
// holds the instance handle verbatim; an absent PID_STATUS_INFO means
// ALIVE, otherwise its low two bits of byte 3 select DISPOSED/UNREGISTERED.
func decodeInlineQos(pl wire.ParameterList) (types.InstanceHandle, types.ChangeKind) {
	ih := types.InstanceHandleNil
	if v, ok := pl.Get(wire.PIDKeyHash); ok && len(v) >= types.InstanceHandleSize {
		copy(ih[:], v)
	}

	kind := types.ChangeKindAlive
	if v, ok := pl.Get(wire.PIDStatusInfo); ok && len(v) >= 4 {
		bits := v[3]
		disposed := bits&statusInfoDisposed != 0
		unregistered := bits&statusInfoUnregistered != 0
		switch {
		case disposed && unregistered:
			kind = types.ChangeKindNotAliveDisposedUnregistered
		case disposed:
			kind = types.ChangeKindNotAliveDisposed
		case unregistered:
			kind = types.ChangeKindNotAliveUnregistered
		}
	}
	return ih, kind
}

// changeFromData builds a pool-backed CacheChange from a decoded DATA
// submessage, stamping it with the INFO_TS-derived source timestamp the
// demux carried alongside it (spec.md §4.9 step 2: "INFO_TS updates the
// per-message timestamp").
func changeFromData(pool *history.ChangePool, d wire.Data, sourceTimestamp time.Time, receivedAt time.Time) *types.CacheChange {
	ih, kind := decodeInlineQos(d.InlineQos)
	c := pool.Get()
	c.Kind = kind
	c.SequenceNumber = d.WriterSN
	c.InstanceHandle = ih
	c.Payload = d.SerializedPayload
	c.SourceTimestamp = sourceTimestamp
	c.ReceptionTimestamp = receivedAt
	c.WriteParams.SourceTimestamp = sourceTimestamp
	return c
}

// fragKey identifies one writer's in-flight fragmented sample.
type fragKey struct {
	writer types.GUID
	sn     types.SequenceNumber
}

// fragInlineQosCache remembers the instance handle and change kind a
// fragmented sample's leading DATA_FRAG carried, since pkg/rtps/endpoint's
// buildDataSubmessages only attaches inline qos to FragmentStartingNum==1
// (pkg/rtps/endpoint/message.go) — every later fragment of the same sample
// must still be delivered with that same kind, including whichever
// fragment happens to complete the reassembly.
type fragInlineQosCache struct {
	mu      sync.Mutex
	entries map[fragKey]types.ChangeKind
	ihs     map[fragKey]types.InstanceHandle
}

func newFragInlineQosCache() *fragInlineQosCache {
	return &fragInlineQosCache{
		entries: make(map[fragKey]types.ChangeKind),
		ihs:     make(map[fragKey]types.InstanceHandle),
	}
}

// decode returns the instance handle and kind to use for df, remembering
// them when df carries inline qos and recalling the remembered value
// otherwise. complete is the caller's best estimate of whether df's
// fragment range reaches the end of the sample (the demux has no visibility
// into the writer proxy's actual reassembly state, which owns the real
// completion signal) — when true the cached entry is dropped. A
// retransmitted final fragment arriving after that point decodes as ALIVE;
// accepted as a known limitation of not sharing state with the proxy.
func (f *fragInlineQosCache) decode(writerGUID types.GUID, df wire.DataFrag, complete bool) (types.InstanceHandle, types.ChangeKind) {
	key := fragKey{writer: writerGUID, sn: df.WriterSN}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(df.InlineQos) > 0 {
		ih, kind := decodeInlineQos(df.InlineQos)
		f.entries[key] = kind
		f.ihs[key] = ih
		if complete {
			delete(f.entries, key)
			delete(f.ihs, key)
		}
		return ih, kind
	}

	kind := f.entries[key]
	ih := f.ihs[key]
	if complete {
		delete(f.entries, key)
		delete(f.ihs, key)
	}
	return ih, kind
}
