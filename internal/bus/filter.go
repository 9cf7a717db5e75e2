package bus

import "strings"

// TargetFilter reports whether a target should receive a message.
// Filters are used as FilteredInvoker.Accept.
type TargetFilter func(target Target) bool

// FilterByName accepts targets with one of the given names.
func FilterByName(names ...string) TargetFilter {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(t Target) bool {
		return set[t.Name()]
	}
}

// FilterByNamePrefix accepts targets whose name starts with prefix.
func FilterByNamePrefix(prefix string) TargetFilter {
	return func(t Target) bool {
		return strings.HasPrefix(t.Name(), prefix)
	}
}

// FilterPriorityRange accepts targets with lo <= priority <= hi.
func FilterPriorityRange(lo, hi int) TargetFilter {
	return func(t Target) bool {
		p := t.Priority()
		return p >= lo && p <= hi
	}
}

// FilterAnd combines filters with AND logic.
func FilterAnd(filters ...TargetFilter) TargetFilter {
	return func(t Target) bool {
		for _, f := range filters {
			if !f(t) {
				return false
			}
		}
		return true
	}
}

// FilterOr combines filters with OR logic.
func FilterOr(filters ...TargetFilter) TargetFilter {
	return func(t Target) bool {
		for _, f := range filters {
			if f(t) {
				return true
			}
		}
		return false
	}
}

// FilterNot negates a filter.
func FilterNot(filter TargetFilter) TargetFilter {
	return func(t Target) bool {
		return !filter(t)
	}
}
