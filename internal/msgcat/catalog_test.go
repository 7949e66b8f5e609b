package msgcat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEmbedded(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	s, err := c.Render("reject.out_of_turn", nil)
	require.NoError(t, err)
	assert.Equal(t, "Not your turn!", s)

	s, err = c.Render("reject.illegal_move", map[string]string{"Reason": "illegal move e2e5"})
	require.NoError(t, err)
	assert.Equal(t, "Invalid move: illegal move e2e5", s)
}

func TestRenderMissing(t *testing.T) {
	c := MustDefault()
	_, err := c.Render("reject.nope", nil)
	require.Error(t, err)
	// missing field in data
	_, err = c.Render("reject.illegal_move", map[string]string{})
	require.Error(t, err)
	assert.Equal(t, "fallback", c.Text("reject.nope", nil, "fallback"))
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("reject:\n  out_of_turn: \"Wait for your opponent.\"\n"), 0o644))
	c, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "Wait for your opponent.", c.Text("reject.out_of_turn", nil, ""))
	assert.Equal(t, "You are not part of this game.", c.Text("reject.not_a_participant", nil, ""))
}

func TestOverrideDirDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("reject:\n  out_of_turn: \"x\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), body, 0o644))
	_, err := New(dir)
	require.Error(t, err)
}
