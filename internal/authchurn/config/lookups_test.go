package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMounts(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []MountInfo
		wantErr bool
	}{
		{
			name:  "json list",
			input: `[{"accessor":"auth_kubernetes_1","path":"auth/kubernetes/","type":"kubernetes"}]`,
			want:  []MountInfo{{Accessor: "auth_kubernetes_1", Path: "auth/kubernetes/", Type: "kubernetes"}},
		},
		{
			name: "sys/auth map wrapped in data",
			input: `{"data": {
				"openshift/": {"accessor": "auth_openshift_2", "type": "openshift", "description": ""},
				"kubernetes/": {"accessor": "auth_kubernetes_1", "type": "kubernetes"}
			}}`,
			want: []MountInfo{
				{Accessor: "auth_kubernetes_1", Path: "kubernetes/", Type: "kubernetes"},
				{Accessor: "auth_openshift_2", Path: "openshift/", Type: "openshift"},
			},
		},
		{
			name: "yaml list",
			input: `
- accessor: auth_k8s_prod
  path: auth/k8s-prod
  type: kubernetes
`,
			want: []MountInfo{{Accessor: "auth_k8s_prod", Path: "auth/k8s-prod", Type: "kubernetes"}},
		},
		{name: "missing accessor", input: `[{"path":"auth/kubernetes"}]`, wantErr: true},
		{name: "empty list", input: `[]`, wantErr: true},
		{name: "empty input", input: ``, wantErr: true},
		{name: "scalar", input: `"nope"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateMounts(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateEntities(t *testing.T) {
	t.Run("preprocessed map", func(t *testing.T) {
		input := `{
			"e-1": {"display_name": "kubernetes-prod-api", "mount_path": "auth/kubernetes/", "mount_accessor": "auth_kubernetes_1", "login_count": 4},
			"e-2": {"display_name": "kubernetes-prod-worker"}
		}`
		got, err := ValidateEntities(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "e-1", got[0].EntityID)
		assert.Equal(t, "kubernetes-prod-api", got[0].DisplayName)
		assert.Equal(t, 4, got[0].LoginCount)
		assert.Equal(t, "e-2", got[1].EntityID)
	})

	t.Run("list", func(t *testing.T) {
		got, err := ValidateEntities(strings.NewReader(`[{"entity_id":"e-9","display_name":"svc"}]`))
		require.NoError(t, err)
		assert.Equal(t, []EntityInfo{{EntityID: "e-9", DisplayName: "svc"}}, got)
	})

	t.Run("list row without id", func(t *testing.T) {
		_, err := ValidateEntities(strings.NewReader(`[{"display_name":"svc"}]`))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ValidateEntities(strings.NewReader(`{}`))
		assert.ErrorIs(t, err, ErrEmptyTable)
	})
}
