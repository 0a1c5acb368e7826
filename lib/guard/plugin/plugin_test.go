package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/chat-guard/lib/modcheck"
)

func TestChecker_LoadScript(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	dir := t.TempDir()
	script := `
function check(req)
	if contains(req.text, "forbidden") then
		return true, "forbidden word"
	end
	return false, ""
end
`
	path := filepath.Join(dir, "words.lua")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))
	require.NoError(t, c.LoadScript(path))

	checks := c.GetAllChecks()
	require.Contains(t, checks, "words")

	t.Run("flagged", func(t *testing.T) {
		v := checks["words"](modcheck.Request{Text: "this has a FORBIDDEN word"})
		require.NotNil(t, v)
		assert.Equal(t, modcheck.PluginCheck, v.Kind)
		assert.Equal(t, "lua-words: forbidden word", v.Reason)
	})

	t.Run("clean", func(t *testing.T) {
		assert.Nil(t, checks["words"](modcheck.Request{Text: "nothing wrong here"}))
	})
}

func TestChecker_LoadScriptErrors(t *testing.T) {
	c := NewChecker()
	defer c.Close()
	dir := t.TempDir()

	t.Run("no check function", func(t *testing.T) {
		path := filepath.Join(dir, "empty.lua")
		require.NoError(t, os.WriteFile(path, []byte(`x = 1`), 0o600))
		assert.Error(t, c.LoadScript(path))
	})

	t.Run("broken lua", func(t *testing.T) {
		path := filepath.Join(dir, "broken.lua")
		require.NoError(t, os.WriteFile(path, []byte(`function check( garbage here`), 0o600))
		assert.Error(t, c.LoadScript(path))
	})
}

func TestChecker_LoadDirectory(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	dir := t.TempDir()
	first := `
function check(req)
	return count_substring(req.text, "!") > 5, "too many exclamations"
end
`
	second := `
function check(req)
	return trim(req.text) == "", "empty after trim"
end
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "excl.lua"), []byte(first), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.lua"), []byte(second), 0o600))
	require.NoError(t, c.LoadDirectory(dir))

	checks := c.GetAllChecks()
	assert.Len(t, checks, 2)
	assert.Contains(t, checks, "excl")
	assert.Contains(t, checks, "blank")

	v := checks["excl"](modcheck.Request{Text: "wow!!!!!! amazing"})
	require.NotNil(t, v)
	assert.Equal(t, "lua-excl: too many exclamations", v.Reason)
}

func TestChecker_RuntimeErrorNeverBlocks(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	dir := t.TempDir()
	script := `
function check(req)
	error("boom")
end
`
	path := filepath.Join(dir, "boom.lua")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))
	require.NoError(t, c.LoadScript(path))

	checks := c.GetAllChecks()
	assert.Nil(t, checks["boom"](modcheck.Request{Text: "anything"}), "runtime failure means no verdict")
}
