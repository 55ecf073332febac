package bbolt

import (
	"path/filepath"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, bucketName string) *bboltKeyValueStore {
	db, err := OpenDB(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(log.NewNopLogger(), db, bucketName)
	require.NoError(t, err)
	return s
}

func TestStore_GetSetDelete(t *testing.T) {
	t.Parallel()

	s := setupStore(t, "test_bucket")

	v, err := s.Get([]byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Set([]byte("k1"), []byte("v1")))
	require.NoError(t, s.Set([]byte("k2"), []byte("v2")))

	v, err = s.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.Delete([]byte("k1"), []byte("not-there")))

	v, err = s.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Nil(t, v)

	count, err = s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_ForEach(t *testing.T) {
	t.Parallel()

	s := setupStore(t, "foreach_bucket")
	expected := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range expected {
		require.NoError(t, s.Set([]byte(k), []byte(v)))
	}

	seen := make(map[string]string)
	require.NoError(t, s.ForEach(func(k, v []byte) error {
		seen[string(k)] = string(v)
		return nil
	}))

	assert.Equal(t, expected, seen)
}

func TestStore_NilDb(t *testing.T) {
	t.Parallel()

	_, err := NewStore(log.NewNopLogger(), nil, "bucket")
	require.ErrorIs(t, err, NoDbError{})

	var s *bboltKeyValueStore
	_, err = s.Get([]byte("k"))
	require.ErrorIs(t, err, NoDbError{})
	require.ErrorIs(t, s.Set([]byte("k"), []byte("v")), NoDbError{})
}
