// Package proxy holds the reader-side mirror of a matched remote writer
// (WriterProxy) and the writer-side mirror of a matched remote reader
// (ReaderProxy), plus the per-change delivery status ChangeForReader
// (spec.md §3, §4.2, §4.3). Proxies never hold a pointer to their owning
// endpoint or to a CacheChange directly — only a participant GUID prefix
// plus entity id, and for changes a history.Handle — so an endpoint can be
// torn down without the proxies it held needing to be walked and cleared
// first (spec.md §9's cyclic-ownership redesign).
package proxy
