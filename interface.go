package stf

import "fmt"

// Apply runs the full pipeline over a complete payload and applies the result
// to the working tree. This is the embedding entry point; the CLI goes through
// App directly.
func Apply(content string, config Config) (Summary, error) {
	app, err := NewApp(&config)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to initialize app: %w", err)
	}
	return app.ProcessAndApply(content)
}

// Decode turns a complete payload into its canonical file set without
// touching the working tree, for callers that want to inspect or post-process
// the result themselves.
func Decode(content string, opts ...Option) (*FileSet, Summary) {
	e := NewEngine(opts...)
	e.Feed(content)
	e.Finish()
	return e.Files(), e.Summary()
}
