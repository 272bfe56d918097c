package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/specialistvlad/pacforge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"a.hcl":          "",
		"b.txt":          "",
		"sub/c.hcl":      "",
		".hidden/d.hcl":  "",
		"sub/deep/e.hcl": "",
	})

	files, err := FindFilesByExtension(dir, ".hcl")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.hcl"),
		filepath.Join(dir, "sub", "c.hcl"),
		filepath.Join(dir, "sub", "deep", "e.hcl"),
	}, files)

	_, err = FindFilesByExtension(dir, "")
	assert.Error(t, err)

	_, err = FindFilesByExtension(filepath.Join(dir, "missing"), ".hcl")
	assert.Error(t, err)
}
