package stf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealStyle(t *testing.T) {
	t.Run("clean content untouched", func(t *testing.T) {
		src := "body { color: red; }\n"
		res := Heal(src, KindStyle)
		assert.True(t, res.OK)
		assert.False(t, res.Repaired)
		assert.Equal(t, src, res.Content)
	})

	t.Run("appends missing closer", func(t *testing.T) {
		res := Heal("body{color:red", KindStyle)
		require.True(t, res.OK)
		assert.True(t, res.Repaired)
		assert.Equal(t, "body{color:red\n}", res.Content)
		assert.NoError(t, Scan(res.Content, KindStyle))
	})

	t.Run("drops extra closer", func(t *testing.T) {
		res := Heal("a { x: y; }\n}\n", KindStyle)
		require.True(t, res.OK)
		assert.True(t, res.Repaired)
		assert.NoError(t, Scan(res.Content, KindStyle))
		assert.Equal(t, 1, strings.Count(res.Content, "}"))
	})

	t.Run("closes unterminated comment", func(t *testing.T) {
		res := Heal("body { margin: 0; }\n/* draft", KindStyle)
		require.True(t, res.OK)
		assert.True(t, res.Repaired)
		assert.NoError(t, Scan(res.Content, KindStyle))
	})

	t.Run("idempotent", func(t *testing.T) {
		first := Heal("nav{display:flex", KindStyle)
		second := Heal(first.Content, KindStyle)
		assert.False(t, second.Repaired)
		assert.Equal(t, first.Content, second.Content)
	})
}

func TestHealScript(t *testing.T) {
	t.Run("clean content untouched", func(t *testing.T) {
		src := "const a = 1;\n"
		res := Heal(src, KindScript)
		assert.True(t, res.OK)
		assert.False(t, res.Repaired)
		assert.Equal(t, src, res.Content)
	})

	t.Run("splits glued comment", func(t *testing.T) {
		res := Heal("//const obj = {\n  a: 1,\n};\n", KindScript)
		require.True(t, res.OK)
		assert.True(t, res.Repaired)
		assert.Contains(t, res.Content, "//\nconst obj = {")
		assert.NoError(t, Scan(res.Content, KindScript))
	})

	t.Run("closes truncated function", func(t *testing.T) {
		res := Heal("function f() {\n  return 1;\n", KindScript)
		require.True(t, res.OK)
		assert.True(t, res.Repaired)
		assert.NoError(t, Scan(res.Content, KindScript))
	})

	t.Run("returns original when repair does not verify", func(t *testing.T) {
		src := "const x = (;\n"
		res := Heal(src, KindScript)
		assert.False(t, res.OK)
		assert.Equal(t, src, res.Content)
		assert.NotEmpty(t, res.Reason)
	})
}

func TestHealStylePre(t *testing.T) {
	t.Run("valid scss untouched", func(t *testing.T) {
		src := "// layout { grid\nnav { display: flex; }\n"
		res := Heal(src, KindStylePre)
		require.True(t, res.OK)
		assert.False(t, res.Repaired)
		assert.Equal(t, src, res.Content)
	})

	t.Run("truncated scss closed", func(t *testing.T) {
		res := Heal("// theme\nnav {\n  a { color: red; }\n", KindStylePre)
		require.True(t, res.OK)
		assert.True(t, res.Repaired)
		assert.NoError(t, Scan(res.Content, KindStylePre))
	})
}

func TestHealScriptTyped(t *testing.T) {
	t.Run("valid ts untouched", func(t *testing.T) {
		src := "const count: number = 1;\nfunction tick(): void {\n  count;\n}\n"
		res := Heal(src, KindScriptTyped)
		require.True(t, res.OK)
		assert.False(t, res.Repaired)
		assert.Equal(t, src, res.Content)
	})

	t.Run("truncated ts closed", func(t *testing.T) {
		res := Heal("function add(a: number, b: number): number {\n  return a + b;\n", KindScriptTyped)
		require.True(t, res.OK)
		assert.True(t, res.Repaired)
		assert.NoError(t, Scan(res.Content, KindScriptTyped))
	})
}

func TestHealMarkup(t *testing.T) {
	t.Run("closes open tags", func(t *testing.T) {
		res := Heal("<html><body><div>hi", KindMarkup)
		require.True(t, res.OK)
		assert.True(t, res.Repaired)
		assert.NoError(t, Scan(res.Content, KindMarkup))
		assert.Contains(t, res.Content, "</div>")
		assert.Contains(t, res.Content, "</html>")
	})

	t.Run("footer inserted before closing body", func(t *testing.T) {
		res := Heal("<html><body><p>hi</p></body></html>", KindMarkup)
		assert.True(t, res.Repaired)
		idx := strings.Index(res.Content, FooterMarker)
		require.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, strings.Index(res.Content, "</body>"))
	})

	t.Run("footer appended without body", func(t *testing.T) {
		res := Heal("<div>hi</div>", KindMarkup)
		assert.True(t, strings.HasSuffix(res.Content, FooterMarker+"\n"))
	})

	t.Run("idempotent", func(t *testing.T) {
		first := Heal("<html><body><p>hi</p>", KindMarkup)
		second := Heal(first.Content, KindMarkup)
		assert.False(t, second.Repaired)
		assert.Equal(t, first.Content, second.Content)
		assert.Equal(t, 1, strings.Count(second.Content, FooterMarker))
	})
}
