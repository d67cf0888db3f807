package stf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamRepair(responses map[string]string, calls *[]string) RepairFunc {
	return func(ctx context.Context, req RepairRequest) (<-chan string, error) {
		*calls = append(*calls, req.Batch)
		ch := make(chan string, 1)
		if resp, ok := responses[req.Batch]; ok {
			ch <- resp
		}
		close(ch)
		return ch, nil
	}
}

func TestAutoFix(t *testing.T) {
	t.Run("clean set needs no rounds", func(t *testing.T) {
		e := NewEngine(WithProtocol(ProtocolMarker))
		e.Feed("[start-file: index.html]\n<html><body><h1>hi</h1></body></html>\n[end-file]\n")
		e.Finish()

		var calls []string
		report, err := e.AutoFix(context.Background(), streamRepair(nil, &calls))
		require.NoError(t, err)
		assert.True(t, report.ReadyForFinalize)
		assert.Empty(t, calls)
	})

	t.Run("repair round fills a missing file", func(t *testing.T) {
		e := NewEngine(WithProtocol(ProtocolMarker))
		e.Feed("[start-file: about.html]\n<html><body><p>about</p></body></html>\n[end-file]\n")
		e.Finish()

		var calls []string
		responses := map[string]string{
			"critical-structure": "[start-file: index.html]\n<html><body><h1>home</h1></body></html>\n[end-file]\n",
		}
		report, err := e.AutoFix(context.Background(), streamRepair(responses, &calls))
		require.NoError(t, err)

		assert.True(t, report.ReadyForFinalize)
		assert.Equal(t, []string{"critical-structure"}, calls)
		content, ok := e.Files().Content("index.html")
		require.True(t, ok)
		assert.Contains(t, content, "<h1>home</h1>")
		assert.Contains(t, content, FooterMarker)
	})

	t.Run("stalls after one round without progress", func(t *testing.T) {
		e := NewEngine(WithProtocol(ProtocolMarker))
		e.Feed("[start-file: about.html]\n<html><body><p>about</p></body></html>\n[end-file]\n")
		e.Finish()

		// the repair stream never produces index.html, so the signature repeats
		var calls []string
		report, err := e.AutoFix(context.Background(), streamRepair(nil, &calls))
		require.NoError(t, err)

		assert.Equal(t, []string{"critical-structure"}, calls)
		assert.False(t, report.ReadyForFinalize)
		assert.Contains(t, report.MissingFeatures, "missing:index.html")
	})

	t.Run("nil repair still runs the heal pass", func(t *testing.T) {
		e := NewEngine(WithProtocol(ProtocolMarker))
		e.Feed("[start-file: index.html]\n<html><body><h1>hi</h1></body></html>\n[end-file]\n")
		e.Feed("[start-file: style.css]\nbody{color:red")
		e.Finish()

		report, err := e.AutoFix(context.Background(), nil)
		require.NoError(t, err)
		assert.NotNil(t, report)

		content, _ := e.Files().Content("style.css")
		assert.NoError(t, Scan(content, KindStyle))
	})

	t.Run("canceled context aborts the round", func(t *testing.T) {
		e := NewEngine(WithProtocol(ProtocolMarker))
		e.Feed("[start-file: about.html]\n<html><body><p>about</p></body></html>\n[end-file]\n")
		e.Finish()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		blocked := RepairFunc(func(ctx context.Context, req RepairRequest) (<-chan string, error) {
			return make(chan string), nil
		})
		_, err := e.AutoFix(ctx, blocked)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBuildRepairPrompt(t *testing.T) {
	prompt := BuildRepairPrompt(RepairRequest{
		Batch:       "critical-structure",
		Issues:      []string{"missing:index.html", "partial:app.js"},
		HealedFiles: []string{"style.css"},
	})

	assert.Contains(t, prompt, "critical-structure")
	assert.Contains(t, prompt, "missing:index.html")
	assert.Contains(t, prompt, "partial:app.js")
	assert.Contains(t, prompt, "style.css")
	assert.Contains(t, prompt, "[start-file:")
	assert.Contains(t, prompt, "[end-file]")
}
