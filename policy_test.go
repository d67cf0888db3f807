package stf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	canonical, ok := p.CanonicalAlias("styles.css")
	assert.True(t, ok)
	assert.Equal(t, "style.css", canonical)
	_, ok = p.CanonicalAlias("style.css")
	assert.False(t, ok)

	assert.True(t, p.IsDuplicateSensitive("index.html"))
	assert.True(t, p.IsDuplicateSensitive("Index.HTML"))
	assert.False(t, p.IsDuplicateSensitive("about.html"))

	assert.True(t, p.IsSensitivePath("package.json"))
	assert.True(t, p.IsSensitivePath("sub/dir/package.json"))
	assert.False(t, p.IsSensitivePath("index.html"))

	assert.True(t, p.NameConforms("style.css"))
	assert.True(t, p.NameConforms("main.v2.css"))
	assert.False(t, p.NameConforms("MyPage.html"))
	assert.False(t, p.NameConforms("_private.js"))
}

func TestReasonIsExplicit(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.ReasonIsExplicit("removing unused helper"))
	assert.True(t, p.ReasonIsExplicit("Refactor of routing layer"))
	assert.True(t, p.ReasonIsExplicit("safe to drop"))
	assert.True(t, p.ReasonIsExplicit("route restructure"))

	// vague phrasing is never an authorization
	assert.False(t, p.ReasonIsExplicit("cleanup"))
	assert.False(t, p.ReasonIsExplicit("tidy things up"))
	assert.False(t, p.ReasonIsExplicit(""))
}

func TestLoadPolicy(t *testing.T) {
	t.Run("empty path falls back to defaults", func(t *testing.T) {
		p, err := LoadPolicy("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPolicy().DuplicateSensitive, p.DuplicateSensitive)
		assert.Equal(t, 3, p.MaxFixRounds)
	})

	t.Run("yaml overlays defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"required_files:\n  - index.html\n  - style.css\nmax_fix_rounds: 5\nnaming_pattern: \"^[a-z]+$\"\n"), 0644))

		p, err := LoadPolicy(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"index.html", "style.css"}, p.RequiredFiles)
		assert.Equal(t, 5, p.MaxFixRounds)
		assert.False(t, p.NameConforms("style.css"))
		assert.True(t, p.NameConforms("index"))

		// sections the file does not mention keep their defaults
		assert.True(t, p.IsDuplicateSensitive("index.html"))
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
