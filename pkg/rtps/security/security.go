package security

import (
	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// IdentityToken is an opaque credential exchanged during discovery
// (spec.md §6). Its contents are entirely plugin-defined; the core only
// ever passes it through to an Authenticator.
type IdentityToken []byte

// Authenticator validates a remote participant's identity before
// discovery admits it (spec.md §6's authentication extension point). The
// default, used when a participant is built without a security
// configuration, is AllowAllAuthenticator.
type Authenticator interface {
	// ValidateRemoteParticipant decides whether remote, presenting token,
	// may be discovered at all. A rejected participant is never added to
	// the discovery database.
	ValidateRemoteParticipant(remote types.GuidPrefix, token IdentityToken) (bool, error)
}

// EndpointKind distinguishes a publication from a subscription for
// AccessController decisions.
type EndpointKind int

const (
	EndpointWriter EndpointKind = iota
	EndpointReader
)

// AccessController decides whether a remote participant may publish or
// subscribe to a given topic/partition combination (spec.md §6's access
// control extension point). The default, PermitAllAccessController,
// allows everything.
type AccessController interface {
	// CheckRemoteEndpoint decides whether remote may operate kind on
	// topic within partitions. Called once per discovered remote
	// endpoint, before matching proceeds.
	CheckRemoteEndpoint(remote types.GuidPrefix, kind EndpointKind, topic string, partitions []string) (bool, error)
}

// AllowAllAuthenticator admits every remote participant without
// inspecting its token. This is the default when no authentication
// plugin is configured.
type AllowAllAuthenticator struct{}

func (AllowAllAuthenticator) ValidateRemoteParticipant(types.GuidPrefix, IdentityToken) (bool, error) {
	return true, nil
}

// PermitAllAccessController permits every remote endpoint on every topic.
// This is the default when no access control plugin is configured.
type PermitAllAccessController struct{}

func (PermitAllAccessController) CheckRemoteEndpoint(types.GuidPrefix, EndpointKind, string, []string) (bool, error) {
	return true, nil
}

// Plugins bundles the security extension points a participant is built
// with. A zero-value Plugins has nil fields; Resolved fills in the
// permissive defaults for anything left unset, so callers never need a
// nil check.
type Plugins struct {
	Authenticator    Authenticator
	AccessController AccessController
}

// Resolved returns p with AllowAllAuthenticator / PermitAllAccessController
// substituted for any unset field.
func (p Plugins) Resolved() Plugins {
	if p.Authenticator == nil {
		p.Authenticator = AllowAllAuthenticator{}
	}
	if p.AccessController == nil {
		p.AccessController = PermitAllAccessController{}
	}
	return p
}
