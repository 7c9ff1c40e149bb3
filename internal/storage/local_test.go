package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreInMemory(t *testing.T) {
	s, err := NewLocalStore("")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ChairKey("device:abc"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ChairKey("device:abc"), []byte(`{"topic":"x"}`)))
	got, err := s.Get(ChairKey("device:abc"))
	require.NoError(t, err)
	assert.Equal(t, `{"topic":"x"}`, string(got))

	// chair 與 delegate 文件互不影響
	_, err = s.Get(DelegateKey("device:abc"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ChairKey("device:abc")))
	_, err = s.Get(ChairKey("device:abc"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreOnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := NewLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(DelegateKey("user:1"), []byte("doc")))
	require.NoError(t, s.Close())

	s, err = NewLocalStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(DelegateKey("user:1"))
	require.NoError(t, err)
	assert.Equal(t, "doc", string(got))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "mun-dashboard-chair-state/user:42", string(ChairKey("user:42")))
	assert.Equal(t, "mun-dashboard-delegate-state/device:x", string(DelegateKey("device:x")))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
