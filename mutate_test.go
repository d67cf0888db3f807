package stf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathCanon(t *testing.T) {
	assert.Equal(t, "src/app.js", PathCanon("./src/app.js"))
	assert.Equal(t, "src/app.js", PathCanon("src//app.js"))
	assert.Equal(t, "src/app.js", PathCanon("/src/app.js"))
	assert.Equal(t, "src/app.js", PathCanon(`src\app.js`))
	assert.Equal(t, "a.txt", PathCanon("  a.txt  "))
	assert.Equal(t, "", PathCanon(""))
	assert.Equal(t, "", PathCanon("."))
	assert.Equal(t, "", PathCanon("../escape.txt"))
	assert.Equal(t, "", PathCanon("a/../../escape.txt"))
}

func newTestMutator(t *testing.T, index ContentIndex) *Mutator {
	t.Helper()
	return NewMutator(DefaultPolicy(), nil, index, nil)
}

func TestMutatorAliasStability(t *testing.T) {
	m := newTestMutator(t, nil)

	start, ok := m.Apply(Event{Kind: EventStart, RawPath: "styles.css", Mode: ModeCreate})
	require.True(t, ok)
	assert.Equal(t, "style.css", start.Path)

	// every later event addressed at the raw path lands on the same file
	chunk, ok := m.Apply(Event{Kind: EventChunk, RawPath: "styles.css", Text: "body{}"})
	require.True(t, ok)
	assert.Equal(t, "style.css", chunk.Path)

	end, ok := m.Apply(Event{Kind: EventEnd, RawPath: "styles.css"})
	require.True(t, ok)
	assert.Equal(t, "style.css", end.Path)
}

func TestMutatorForbiddenAliases(t *testing.T) {
	t.Run("rewrite keeps directory", func(t *testing.T) {
		m := newTestMutator(t, nil)
		ev, ok := m.Apply(Event{Kind: EventStart, RawPath: "css/stylesheet.css", Mode: ModeCreate})
		require.True(t, ok)
		assert.Equal(t, "css/style.css", ev.Path)
	})

	t.Run("alias collapses onto existing canonical file", func(t *testing.T) {
		m := newTestMutator(t, nil)
		first, _ := m.Apply(Event{Kind: EventStart, RawPath: "style.css", Mode: ModeCreate})
		m.Apply(Event{Kind: EventEnd, RawPath: "style.css"})

		second, ok := m.Apply(Event{Kind: EventStart, RawPath: "styles.css", Mode: ModeCreate})
		require.True(t, ok)
		assert.Equal(t, first.Path, second.Path)
	})
}

func TestMutatorDuplicateSensitive(t *testing.T) {
	m := newTestMutator(t, nil)

	first, _ := m.Apply(Event{Kind: EventStart, RawPath: "index.html", Mode: ModeCreate})
	m.Apply(Event{Kind: EventEnd, RawPath: "index.html"})

	second, ok := m.Apply(Event{Kind: EventStart, RawPath: "pages/index.html", Mode: ModeCreate})
	require.True(t, ok)
	assert.Equal(t, first.Path, second.Path, "duplicate-sensitive basename must collapse onto the registered file")

	// non-sensitive basenames may fork freely
	a, _ := m.Apply(Event{Kind: EventStart, RawPath: "about.html", Mode: ModeCreate})
	m.Apply(Event{Kind: EventEnd, RawPath: "about.html"})
	b, _ := m.Apply(Event{Kind: EventStart, RawPath: "pages/about.html", Mode: ModeCreate})
	assert.NotEqual(t, a.Path, b.Path)
}

func TestMutatorChunkFallback(t *testing.T) {
	m := newTestMutator(t, nil)

	m.Apply(Event{Kind: EventStart, RawPath: "index.html", Mode: ModeCreate})

	// a chunk with a raw path the alias table never saw follows the active file
	ev, ok := m.Apply(Event{Kind: EventChunk, RawPath: "garbled.html", Text: "x"})
	require.True(t, ok)
	assert.Equal(t, "index.html", ev.Path)

	// with no active file either, the chunk is dropped
	m2 := newTestMutator(t, nil)
	_, ok = m2.Apply(Event{Kind: EventChunk, RawPath: "orphan.txt", Text: "x"})
	assert.False(t, ok)
}

func TestMutatorSensitiveDelete(t *testing.T) {
	m := newTestMutator(t, nil)

	t.Run("vague reason refused", func(t *testing.T) {
		_, ok := m.Apply(Event{Kind: EventDelete, RawPath: "package.json", Reason: "cleanup"})
		assert.False(t, ok)
	})

	t.Run("explicit reason accepted", func(t *testing.T) {
		ev, ok := m.Apply(Event{Kind: EventDelete, RawPath: "package.json", Reason: "unused dependency manifest"})
		require.True(t, ok)
		assert.Equal(t, "package.json", ev.Path)
	})

	t.Run("ordinary files need no reason", func(t *testing.T) {
		_, ok := m.Apply(Event{Kind: EventDelete, RawPath: "draft.html"})
		assert.True(t, ok)
	})
}

func TestMutatorMove(t *testing.T) {
	t.Run("sensitive source refused without keyword", func(t *testing.T) {
		m := newTestMutator(t, nil)
		_, ok := m.Apply(Event{Kind: EventMove, RawPath: "package.json", ToPath: "pkg.json"})
		assert.False(t, ok)
	})

	t.Run("referenced source refused without keyword", func(t *testing.T) {
		files := NewFileSet()
		files.Seed("index.html", `<a href="about.html">about</a>`)
		files.Seed("about.html", "<p>about</p>")
		m := newTestMutator(t, files)

		_, ok := m.Apply(Event{Kind: EventMove, RawPath: "about.html", ToPath: "pages/about.html"})
		assert.False(t, ok)

		ev, ok := m.Apply(Event{Kind: EventMove, RawPath: "about.html", ToPath: "pages/about.html",
			Reason: "route restructure"})
		require.True(t, ok)
		assert.Equal(t, "about.html", ev.Path)
		assert.Equal(t, "pages/about.html", ev.ToPath)
	})

	t.Run("later chunks follow the moved file", func(t *testing.T) {
		files := NewFileSet()
		files.Seed("a.js", "let a;")
		m := newTestMutator(t, files)

		_, ok := m.Apply(Event{Kind: EventMove, RawPath: "a.js", ToPath: "lib/a.js", Reason: "safe move"})
		require.True(t, ok)

		ev, ok := m.Apply(Event{Kind: EventChunk, RawPath: "a.js", Text: "x"})
		require.True(t, ok)
		assert.Equal(t, "lib/a.js", ev.Path)
	})

	t.Run("identity move dropped", func(t *testing.T) {
		m := newTestMutator(t, nil)
		_, ok := m.Apply(Event{Kind: EventMove, RawPath: "a.js", ToPath: "./a.js", Reason: "safe"})
		assert.False(t, ok)
	})
}
