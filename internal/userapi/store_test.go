package userapi

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	s := NewMemStore()

	_, err := s.Get("users", "1")
	assert.ErrorIs(t, err, ErrNotFound)

	doc := []byte(jack)
	created, err := s.Put("users", "1", doc)
	require.NoError(t, err)
	assert.True(t, created)

	// the store keeps its own copy
	doc[0] = 'X'
	got, err := s.Get("users", "1")
	require.NoError(t, err)
	assert.Equal(t, jack, string(got))

	created, err = s.Put("users", "1", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, []string{"users"}, s.Namespaces())

	require.NoError(t, s.Delete("users", "1"))
	assert.ErrorIs(t, s.Delete("users", "1"), ErrNotFound)
	assert.ErrorIs(t, s.Delete("nope", "1"), ErrNotFound)
	assert.Empty(t, s.Namespaces())
}

func TestMemStore_ConcurrentUpserts(t *testing.T) {
	s := NewMemStore()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := s.Put("users", fmt.Sprint(i%5), []byte(jack))
			assert.NoError(t, err)
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, creates)
}

func TestMemStore_ListAndDrop(t *testing.T) {
	s := NewMemStore()

	_, err := s.List("users")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Drop("users")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"1", "2"} {
		_, err := s.Put("users", id, []byte(jack))
		require.NoError(t, err)
	}
	_, err = s.Put("notes", "a", []byte(`{}`))
	require.NoError(t, err)

	docs, err := s.List("users")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	// the snapshot is detached from the store
	delete(docs, "1")
	_, err = s.Get("users", "1")
	assert.NoError(t, err)

	n, err := s.Drop("users")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"notes"}, s.Namespaces())
	_, err = s.Get("users", "2")
	assert.ErrorIs(t, err, ErrNotFound)
}
