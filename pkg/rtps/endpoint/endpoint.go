package endpoint

import "github.com/rtps-io/rtps-core/pkg/rtps/types"

// Endpoint is the minimal surface pkg/rtps/participant needs to hold any
// of the four writer/reader kinds in its entity-id-keyed registry,
// without the registry caring which kind a given entry is.
type Endpoint interface {
	GUID() types.GUID
	Topic() string
}

var (
	_ Endpoint = (*StatelessWriter)(nil)
	_ Endpoint = (*StatefulWriter)(nil)
	_ Endpoint = (*StatelessReader)(nil)
	_ Endpoint = (*StatefulReader)(nil)
)
