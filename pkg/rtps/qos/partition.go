package qos

import "path/filepath"

// PartitionsIntersect reports whether any name in a matches any name in b,
// honouring fnmatch-style wildcards (spec.md §4.7 rule 9). An empty
// partition list is treated as the implicit default partition "", which
// only matches another empty list or an explicit "" entry — mirroring
// DDS's default-partition semantics.
//
// path/filepath.Match already implements the shell-glob semantics
// (*, ?, [...]) that "fnmatch-style" calls for; no third-party glob
// library appears anywhere in the examples pack, so this is the one
// ambient-stack concern left on the standard library (see DESIGN.md).
func PartitionsIntersect(a, b []string) bool {
	an := normalizePartitions(a)
	bn := normalizePartitions(b)
	for _, pa := range an {
		for _, pb := range bn {
			if partitionMatches(pa, pb) || partitionMatches(pb, pa) {
				return true
			}
		}
	}
	return false
}

func normalizePartitions(p []string) []string {
	if len(p) == 0 {
		return []string{""}
	}
	return p
}

func partitionMatches(pattern, name string) bool {
	if pattern == name {
		return true
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
