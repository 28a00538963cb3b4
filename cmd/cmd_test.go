// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelqa/kestrel/internal/config"
)

func withTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := cfg
	cfg = config.NewDefaultConfig()
	cfg.Cache.Dir = dir
	t.Cleanup(func() { cfg = prev })
	return dir
}

func writeCacheFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCacheShowEmpty(t *testing.T) {
	withTestConfig(t)

	c := newCacheShowCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	require.NoError(t, c.RunE(c, nil))
	assert.Contains(t, out.String(), "No cached selectors")
}

func TestCacheShowListsEntries(t *testing.T) {
	dir := withTestConfig(t)
	writeCacheFile(t, dir, "login-abcd1234.selectors.json",
		`{"Successful login":{"steps":[{"task":"Click the login button","selector":"#login"}]}}`)

	c := newCacheShowCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	require.NoError(t, c.RunE(c, nil))

	assert.Contains(t, out.String(), "Successful login")
	assert.Contains(t, out.String(), "#login")
}

func TestCacheShowReportsCorruptFiles(t *testing.T) {
	dir := withTestConfig(t)
	writeCacheFile(t, dir, "broken-ffff0000.selectors.json", "{not json")

	c := newCacheShowCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	require.NoError(t, c.RunE(c, nil))
	assert.Contains(t, out.String(), "corrupt")
}

func TestCacheClear(t *testing.T) {
	dir := withTestConfig(t)
	kept := writeCacheFile(t, dir, "notes.txt", "not a cache file")
	removed := writeCacheFile(t, dir, "login-abcd1234.selectors.json", "{}")

	c := newCacheClearCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	require.NoError(t, c.RunE(c, nil))

	_, err := os.Stat(removed)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(kept)
	assert.NoError(t, err, "only selector cache files are removed")
	assert.Contains(t, out.String(), "Removed 1")
}

func TestRunCommandRequiresArgs(t *testing.T) {
	c := newRunCmd()
	err := c.Args(c, nil)
	require.Error(t, err)

	assert.NoError(t, c.Args(c, []string{"suite.feature"}))
}

func TestRunCommandFlags(t *testing.T) {
	c := newRunCmd()
	require.NoError(t, c.Flags().Set("no-cache", "true"))
	require.NoError(t, c.Flags().Set("parallelism", "4"))

	noCache, err := c.Flags().GetBool("no-cache")
	require.NoError(t, err)
	assert.True(t, noCache)
	p, err := c.Flags().GetInt("parallelism")
	require.NoError(t, err)
	assert.Equal(t, 4, p)
}
