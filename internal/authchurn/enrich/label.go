package enrich

import "strings"

const (
	// NoNamespace stands in for a missing namespace in a workload label.
	NoNamespace = "(no-ns)"
	// NoServiceAccount stands in for a missing service account name.
	NoServiceAccount = "(no-sa)"
)

// namespaceKeys are consulted in order; the first non-empty value wins.
var namespaceKeys = []string{
	"service_account_namespace",
	"kubernetes_namespace",
	"namespace",
}

const serviceAccountKey = "service_account_name"

// LabelOptions tunes workload label derivation.
type LabelOptions struct {
	// DisplayNameFallback labels logins that carry neither namespace nor
	// service account metadata as "(no-ns)/<display name>".
	DisplayNameFallback bool
}

// DefaultLabelOptions enables the display name fallback.
func DefaultLabelOptions() LabelOptions {
	return LabelOptions{DisplayNameFallback: true}
}

// WorkloadLabel derives the "namespace/service-account" label for a login.
//
//   - both present:        "payments/api"
//   - namespace only:      "payments/(no-sa)"
//   - service account only: "(no-ns)/api"
//   - neither:             "(no-ns)/<displayName>" when the fallback is on
//     and displayName is non-empty, otherwise no label.
//
// Values are whitespace trimmed; a value that trims to empty counts as absent.
func WorkloadLabel(md map[string]string, displayName string, opts LabelOptions) (string, bool) {
	ns := ""
	for _, k := range namespaceKeys {
		if v := strings.TrimSpace(md[k]); v != "" {
			ns = v
			break
		}
	}
	sa := strings.TrimSpace(md[serviceAccountKey])

	switch {
	case ns != "" && sa != "":
		return ns + "/" + sa, true
	case sa != "":
		return NoNamespace + "/" + sa, true
	case ns != "":
		return ns + "/" + NoServiceAccount, true
	}

	if !opts.DisplayNameFallback {
		return "", false
	}
	if dn := strings.TrimSpace(displayName); dn != "" {
		return NoNamespace + "/" + dn, true
	}
	return "", false
}

// LabelNamespace returns the namespace part of a workload label.
func LabelNamespace(label string) string {
	ns, _, _ := strings.Cut(label, "/")
	return ns
}
