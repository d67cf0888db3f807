package stf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForPath(t *testing.T) {
	assert.Equal(t, KindMarkup, KindForPath("index.html"))
	assert.Equal(t, KindMarkup, KindForPath("pages/About.HTM"))
	assert.Equal(t, KindStyle, KindForPath("css/style.css"))
	assert.Equal(t, KindStylePre, KindForPath("theme.scss"))
	assert.Equal(t, KindStylePre, KindForPath("vars.less"))
	assert.Equal(t, KindScript, KindForPath("app.js"))
	assert.Equal(t, KindScriptTyped, KindForPath("src/main.ts"))
	assert.Equal(t, KindScriptTyped, KindForPath("src/App.tsx"))
	assert.Equal(t, KindOther, KindForPath("README.md"))
	assert.Equal(t, KindOther, KindForPath("package.json"))
}

func TestScanStyle(t *testing.T) {
	t.Run("balanced", func(t *testing.T) {
		assert.NoError(t, Scan("body { color: red; }\n.nav { display: flex; }\n", KindStyle))
	})

	t.Run("open brace", func(t *testing.T) {
		err := Scan("body { color: red;\n", KindStyle)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unbalanced")
	})

	t.Run("stray closer", func(t *testing.T) {
		err := Scan("}\n", KindStyle)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected closing token")
	})

	t.Run("brace inside string", func(t *testing.T) {
		assert.NoError(t, Scan(`a::after { content: "}"; }`, KindStyle))
	})

	t.Run("brace inside comment", func(t *testing.T) {
		assert.NoError(t, Scan("/* } */\nbody { margin: 0; }\n", KindStyle))
	})

	t.Run("unterminated comment", func(t *testing.T) {
		err := Scan("body { margin: 0; }\n/* draft", KindStyle)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unterminated block comment")
	})

	t.Run("unterminated string", func(t *testing.T) {
		err := Scan(`a::after { content: "oops; }`, KindStyle)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unterminated string")
	})
}

func TestScanScript(t *testing.T) {
	t.Run("balanced", func(t *testing.T) {
		assert.NoError(t, Scan("const items = [1, 2, 3];\nfunction sum(a, b) { return a + b; }\n", KindScript))
	})

	t.Run("open brace", func(t *testing.T) {
		err := Scan("function render() {\n  draw();\n", KindScript)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unbalanced")
	})

	t.Run("stray bracket", func(t *testing.T) {
		err := Scan("];\n", KindScript)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected closing token")
	})

	t.Run("brace in template string", func(t *testing.T) {
		assert.NoError(t, Scan("const t = `}`;\n", KindScript))
	})

	t.Run("escaped quote", func(t *testing.T) {
		assert.NoError(t, Scan(`const s = "a\"b";`, KindScript))
	})

	t.Run("closer hidden in line comment", func(t *testing.T) {
		err := Scan("//const obj = {\n  a: 1,\n};\n", KindScript)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected closing token")
	})

	t.Run("syntax probe catches balanced garbage", func(t *testing.T) {
		err := Scan("const x = ;\n", KindScript)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "syntax error")
	})

	t.Run("module scripts skip the probe", func(t *testing.T) {
		assert.NoError(t, Scan("import { h } from './h.js';\nh();\n", KindScript))
	})
}

func TestScanScriptTyped(t *testing.T) {
	t.Run("type annotations pass", func(t *testing.T) {
		src := "const count: number = 1;\nfunction add(a: number, b: number): number {\n  return a + b;\n}\n"
		assert.NoError(t, Scan(src, KindScriptTyped))
	})

	t.Run("interface declaration passes", func(t *testing.T) {
		src := "interface Point {\n  x: number;\n  y: number;\n}\n"
		assert.NoError(t, Scan(src, KindScriptTyped))
	})

	t.Run("open brace still caught", func(t *testing.T) {
		err := Scan("function render(): void {\n  draw();\n", KindScriptTyped)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unbalanced")
	})
}

func TestScanStylePre(t *testing.T) {
	t.Run("brace in line comment ignored", func(t *testing.T) {
		assert.NoError(t, Scan("// layout { grid\nnav { display: flex; }\n", KindStylePre))
	})

	t.Run("nested rules pass", func(t *testing.T) {
		src := "nav {\n  ul { margin: 0; } // reset { list\n  a { color: $link; }\n}\n"
		assert.NoError(t, Scan(src, KindStylePre))
	})

	t.Run("open brace still caught", func(t *testing.T) {
		err := Scan("nav {\n  a { color: red; }\n", KindStylePre)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unbalanced")
	})

	t.Run("plain css keeps counting after slashes", func(t *testing.T) {
		err := Scan("// not a comment in css {\n", KindStyle)
		require.Error(t, err)
	})
}

func TestScanMarkup(t *testing.T) {
	t.Run("balanced", func(t *testing.T) {
		assert.NoError(t, Scan("<html><body><div><p>hi</p></div></body></html>", KindMarkup))
	})

	t.Run("void elements", func(t *testing.T) {
		assert.NoError(t, Scan("<div><br><img src=\"a.png\"><input type=\"text\"></div>", KindMarkup))
	})

	t.Run("self closing", func(t *testing.T) {
		assert.NoError(t, Scan("<div><icon-badge size=\"sm\"/></div>", KindMarkup))
	})

	t.Run("unclosed tag", func(t *testing.T) {
		err := Scan("<html><body><div>hi</body></html>", KindMarkup)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unclosed tag")
	})

	t.Run("stray closing tag", func(t *testing.T) {
		err := Scan("<div>hi</div></section>", KindMarkup)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected closing tag")
	})

	t.Run("tags inside comments ignored", func(t *testing.T) {
		assert.NoError(t, Scan("<!-- <div> -->\n<p>ok</p>", KindMarkup))
	})

	t.Run("script raw text", func(t *testing.T) {
		assert.NoError(t, Scan("<body><script>if (a < b) { go(); }</script></body>", KindMarkup))
	})

	t.Run("other kind always passes", func(t *testing.T) {
		assert.NoError(t, Scan("{{{{", KindOther))
	})
}
