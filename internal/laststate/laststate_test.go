// SPDX-License-Identifier: MIT

package laststate

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfosync/nfosync/internal/media"
)

func TestStore_RoundTripsThroughReload(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)

	item := media.Item{Type: media.TypeMovie, ID: 42}
	s.SetChecksum(item, 0xdeadbeef)
	s.SetNfoMtime(item, 1700000000)

	require.NoError(t, s.Write())

	reloaded, err := Open(dir)
	require.NoError(t, err)

	entry, ok := reloaded.Get(item)
	require.True(t, ok)
	assert.True(t, entry.HasChecksum)
	assert.Equal(t, uint32(0xdeadbeef), entry.Checksum)
	assert.True(t, entry.HasNfoMtime)
	assert.Equal(t, int64(1700000000), entry.NfoMtime)
	assert.Equal(t, 1, reloaded.Count(media.TypeMovie))
}

func TestStore_GetMissingItemReportsNotFound(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok := s.Get(media.Item{Type: media.TypeTVShow, ID: 7})
	assert.False(t, ok)
}

func TestStore_ForgetRemovesRecord(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	item := media.Item{Type: media.TypeEpisode, ID: 1}
	s.SetChecksum(item, 123)
	require.Equal(t, 1, s.Count(media.TypeEpisode))

	s.Forget(item)
	_, ok := s.Get(item)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Count(media.TypeEpisode))
}

func TestStore_WriteIsNoOpWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.Write())
	_, err = os.Stat(dir + "/movies.dat")
	assert.True(t, os.IsNotExist(err), "an untouched tracker must not create a file on Write")
}

func TestStore_TruncatedFileIsTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	item := media.Item{Type: media.TypeMovie, ID: 1}
	s.SetChecksum(item, 1)
	require.NoError(t, s.Write())

	path := dir + "/movies.dat"
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-2))

	reloaded, err := Open(dir)
	require.NoError(t, err)
	_, ok := reloaded.Get(item)
	assert.False(t, ok, "a truncated trailing record must be dropped, not crash the load")
}
