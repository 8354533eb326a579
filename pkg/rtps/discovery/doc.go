// Package discovery implements SIMPLE participant and endpoint discovery
// (spec.md §4.6, C7): a builtin SPDP writer/reader pair announces and
// tracks ParticipantProxyData over well-known multicast, and a builtin
// SEDP writer/reader pair per direction (publications, subscriptions)
// exchanges WriterProxyData/ReaderProxyData once two participants have
// found each other. Both layers reuse pkg/rtps/endpoint for their builtin
// traffic (StatelessWriter/StatelessReader for SPDP, StatefulWriter/
// StatefulReader for SEDP) rather than hand-rolling a second delivery
// path, the same way the teacher's destination controller
// reuses its generic EndpointsWatcher machinery for every consumer of
// endpoint change events instead of giving each consumer its own watch
// loop.
package discovery
