// Package endpoint implements the writer and reader state machines of
// RTPS 2.3 (spec.md §4.2/§4.3, C5): StatelessWriter, StatefulWriter,
// StatelessReader, StatefulReader. Each is a small struct wired from a
// history, a set of proxies, a locator.Selector, and a Sender — there is
// no shared base class; common helpers live in message.go instead of an
// inheritance hierarchy.
package endpoint
