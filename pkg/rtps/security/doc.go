// Package security defines the DDS Security plugin extension points
// (spec.md §6: "security is extension points only — no cryptographic
// implementation ships here"). It models the two plugin categories
// original_source's security examples configure against: authentication
// (who is this remote participant) and access control (what is it allowed
// to publish/subscribe to). AllowAll/PermitAll no-op implementations are
// the default when a participant is built without security configured.
package security
