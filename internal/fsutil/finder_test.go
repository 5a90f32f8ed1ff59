package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/munge/internal/testutil"
)

func TestFindFilesByExtension(t *testing.T) {
	root := testutil.WriteFiles(t, map[string]string{
		"b/views.hcl":     "",
		"a.hcl":           "",
		"a/summaries.hcl": "",
		"a-b.hcl":         "",
		"notes.txt":       "",
	})

	got, err := FindFilesByExtension(root, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a-b.hcl"),
		filepath.Join(root, "a.hcl"),
		filepath.Join(root, "a", "summaries.hcl"),
		filepath.Join(root, "b", "views.hcl"),
	}, got)

	single, err := FindFilesByExtension(filepath.Join(root, "a.hcl"), ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.hcl")}, single)

	none, err := FindFilesByExtension(filepath.Join(root, "notes.txt"), ".hcl")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = FindFilesByExtension(filepath.Join(root, "missing"), ".hcl")
	assert.Error(t, err)

	assert.Panics(t, func() { _, _ = FindFilesByExtension(root, "") })
}
