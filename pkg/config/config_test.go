package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/overlaydb/pkg/txpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePool = `
apiVersion: overlaydb/v1
kind: Pool
metadata:
  name: orders
spec:
  cacheMode: one_time
  lockTimeout: 5s
  scopes:
    - name: accounts
    - name: orders
      deps: [accounts]
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadPoolResourceParsesSpec(t *testing.T) {
	path := writeTemp(t, samplePool)

	res, err := LoadPoolResource(path)
	require.NoError(t, err)

	assert.Equal(t, "orders", res.Metadata.Name)
	assert.Equal(t, CacheOneTime, res.Spec.CacheMode)
	assert.Equal(t, txpool.OneTime, res.Spec.CacheMode.ToTxPool())
	assert.Equal(t, []string{"accounts"}, res.DepsByName()["orders"])
}

func TestLoadPoolResourceRejectsWrongKind(t *testing.T) {
	path := writeTemp(t, "apiVersion: overlaydb/v1\nkind: Scope\nmetadata:\n  name: x\n")

	_, err := LoadPoolResource(path)
	assert.Error(t, err)
}

func TestCacheModeDefaultsToPersistent(t *testing.T) {
	var m CacheMode
	assert.Equal(t, txpool.Persistent, m.ToTxPool())
}
