package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/config"
)

func TestLoadLookups(t *testing.T) {
	dir := t.TempDir()
	mounts := filepath.Join(dir, "mounts.json")
	entities := filepath.Join(dir, "entities.yaml")

	require.NoError(t, os.WriteFile(mounts, []byte(`{
		"kubernetes/": {"accessor": "auth_kubernetes_1a2b", "type": "kubernetes"},
		"auth/openshift-prod": {"accessor": "auth_openshift_9f", "type": "openshift"}
	}`), 0o644))
	require.NoError(t, os.WriteFile(entities, []byte(`
- entity_id: ent-1
  display_name: kubernetes-payments-api
- entity_id: ent-2
  display_name: kubernetes-batch-worker
`), 0o644))

	l, err := LoadLookups(config.LookupsCfg{MountsFile: mounts, EntitiesFile: entities})
	require.NoError(t, err)

	m, e := l.Len()
	assert.Equal(t, 2, m)
	assert.Equal(t, 2, e)

	label, ok := l.MountLabel("auth_kubernetes_1a2b")
	assert.True(t, ok)
	assert.Equal(t, "auth/kubernetes", label)

	label, ok = l.MountLabel("auth_openshift_9f")
	assert.True(t, ok)
	assert.Equal(t, "auth/openshift-prod", label)

	_, ok = l.MountLabel("missing")
	assert.False(t, ok)

	assert.Equal(t, "kubernetes-payments-api", l.EntityName("ent-1"))
	assert.Equal(t, "", l.EntityName("ent-404"))
}

func TestLoadLookups_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"path":"kubernetes/"}]`), 0o644))

	_, err := LoadLookups(config.LookupsCfg{MountsFile: bad})
	assert.Error(t, err)

	_, err = LoadLookups(config.LookupsCfg{EntitiesFile: filepath.Join(dir, "nope.yaml")})
	assert.Error(t, err)
}

func TestLoadLookups_Empty(t *testing.T) {
	l, err := LoadLookups(config.LookupsCfg{})
	require.NoError(t, err)
	m, e := l.Len()
	assert.Zero(t, m)
	assert.Zero(t, e)
}

func TestLookups_NilSafe(t *testing.T) {
	var l *Lookups
	_, ok := l.MountLabel("x")
	assert.False(t, ok)
	assert.Equal(t, "", l.EntityName("x"))
}
