package inmemory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	t.Parallel()

	s := NewStore()

	require.Error(t, s.Set([]byte(""), []byte("blank")))

	require.NoError(t, s.Set([]byte("first"), []byte("1")))
	require.NoError(t, s.Set([]byte("second"), []byte("2")))
	require.NoError(t, s.Set([]byte("first"), []byte("one")))

	v, err := s.Get([]byte("first"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), v)

	var keys []string
	require.NoError(t, s.ForEach(func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	}))
	assert.Equal(t, []string{"first", "second"}, keys, "iteration follows insertion order")

	require.NoError(t, s.Delete([]byte("first")))
	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
