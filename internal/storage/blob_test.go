package storage

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(afero.NewMemMapFs(), "/data/audio")
	require.NoError(t, err)
	return s
}

func TestFileStore_SaveReadDelete(t *testing.T) {
	s := newTestStore(t)

	ref, err := s.Save("Memo.WAV", strings.NewReader("RIFF...."))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".wav"))

	data, err := s.Read(ref)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....", string(data))

	require.NoError(t, s.Delete(ref))
	_, err = s.Read(ref)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine
	assert.NoError(t, s.Delete(ref))
}

func TestFileStore_UniqueRefs(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Save("a.wav", strings.NewReader("1"))
	require.NoError(t, err)
	b, err := s.Save("a.wav", strings.NewReader("2"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	s := newTestStore(t)

	for _, ref := range []string{"", "../etc/passwd", "sub/file.wav", ".hidden"} {
		_, err := s.Read(ref)
		assert.ErrorIs(t, err, ErrNotFound, ref)
		assert.Error(t, s.Delete(ref), ref)
	}
}
