// Package history implements the writer- and reader-side CacheChange
// stores (spec.md §4.1, C3): a generation-stamped change pool, sequence
// assignment, KEEP_LAST/KEEP_ALL retention, and resource-limit enforcement.
package history
