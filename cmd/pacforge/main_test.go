package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specialistvlad/pacforge/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_InvalidConfig(t *testing.T) {
	// A syntax error in the configuration file is a usage error.
	dir := t.TempDir()
	path := filepath.Join(dir, "pacforge.hcl")
	require.NoError(t, os.WriteFile(path, []byte("policy {\n  mode = \n"), 0o600))

	var out, errW bytes.Buffer
	err := run(context.Background(), strings.NewReader(""), &out, &errW, []string{"plan", "--config", path, "yay"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRun_Help(t *testing.T) {
	var out, errW bytes.Buffer
	err := run(context.Background(), strings.NewReader(""), &out, &errW, []string{"--help"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "pacforge resolves dependencies")
	assert.Contains(t, out.String(), "upgrade")
}
