package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkloadLabel(t *testing.T) {
	on := DefaultLabelOptions()
	off := LabelOptions{}

	cases := []struct {
		name        string
		md          map[string]string
		displayName string
		opts        LabelOptions
		want        string
		wantOK      bool
	}{
		{
			name:   "namespace and service account",
			md:     map[string]string{"service_account_namespace": "payments", "service_account_name": "api"},
			opts:   on,
			want:   "payments/api",
			wantOK: true,
		},
		{
			name:   "kubernetes_namespace fallback",
			md:     map[string]string{"kubernetes_namespace": "batch", "service_account_name": "worker"},
			opts:   on,
			want:   "batch/worker",
			wantOK: true,
		},
		{
			name: "first non-empty namespace key wins",
			md: map[string]string{
				"service_account_namespace": "  ",
				"kubernetes_namespace":      "k8sns",
				"namespace":                 "plain",
				"service_account_name":      "sa",
			},
			opts:   on,
			want:   "k8sns/sa",
			wantOK: true,
		},
		{
			name:   "service account only",
			md:     map[string]string{"service_account_name": "api"},
			opts:   on,
			want:   "(no-ns)/api",
			wantOK: true,
		},
		{
			name:   "namespace only",
			md:     map[string]string{"namespace": "payments"},
			opts:   on,
			want:   "payments/(no-sa)",
			wantOK: true,
		},
		{
			name:        "display name fallback",
			md:          map[string]string{"role": "x"},
			displayName: "kubernetes-payments-api",
			opts:        on,
			want:        "(no-ns)/kubernetes-payments-api",
			wantOK:      true,
		},
		{
			name:        "fallback disabled",
			displayName: "kubernetes-payments-api",
			opts:        off,
			wantOK:      false,
		},
		{
			name:        "nothing at all",
			displayName: "   ",
			opts:        on,
			wantOK:      false,
		},
		{
			name:   "values are trimmed",
			md:     map[string]string{"namespace": " ns ", "service_account_name": " sa "},
			opts:   off,
			want:   "ns/sa",
			wantOK: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := WorkloadLabel(tc.md, tc.displayName, tc.opts)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLabelNamespace(t *testing.T) {
	assert.Equal(t, "payments", LabelNamespace("payments/api"))
	assert.Equal(t, "(no-ns)", LabelNamespace("(no-ns)/api"))
	assert.Equal(t, "solo", LabelNamespace("solo"))
}
