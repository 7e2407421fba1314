package enrich

import "strings"

// EventFilter reports whether a login event should be kept.
type EventFilter func(LoginEvent) bool

// FilterByMount keeps events whose mount accessor or mount label matches one
// of mounts. Matching is case-insensitive, ignores surrounding slashes and
// accepts labels with or without the "auth/" prefix.
//
// Examples:
//   - FilterByMount(["kubernetes"]) matches label "auth/kubernetes"
//   - FilterByMount(["auth_kubernetes_1a2b"]) matches that accessor
func FilterByMount(mounts []string) EventFilter {
	want := make(map[string]struct{}, len(mounts))
	for _, m := range mounts {
		if m = normalizeMount(m); m != "" {
			want[m] = struct{}{}
		}
	}
	return func(e LoginEvent) bool {
		if _, ok := want[normalizeMount(e.MountKey)]; ok {
			return true
		}
		_, ok := want[normalizeMount(e.MountLabel)]
		return ok
	}
}

func normalizeMount(m string) string {
	m = strings.ToLower(strings.Trim(strings.TrimSpace(m), "/"))
	return strings.TrimPrefix(m, "auth/")
}

// FilterByNamespace keeps events whose workload label namespace is one of
// namespaces (case-insensitive). Events without a workload label never
// match, which drops most failed logins.
func FilterByNamespace(namespaces []string) EventFilter {
	return func(e LoginEvent) bool {
		if e.WorkloadLabel == "" {
			return false
		}
		return matchesAny(LabelNamespace(e.WorkloadLabel), namespaces)
	}
}

func matchesAny(value string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(value, strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

// matchAll combines filters with AND.
func matchAll(filters []EventFilter) EventFilter {
	return func(e LoginEvent) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}
