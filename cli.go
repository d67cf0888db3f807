package stf

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type CLIConfig struct {
	Protocol    string
	PolicyPath  string
	Root        string
	FixDiffs    bool
	Undo        bool
	Redo        bool
	UseNvim     bool
	NoAnimation bool
	Verbose     bool
	Extensions  []string
	Completion  string
	Files       []string
}

var cfg = &CLIConfig{}

var rootCmd = &cobra.Command{
	Use:   "stf",
	Short: "Parse a generation stream from stdin or clipboard to update files.",
	Long: `Parse a generation stream from stdin (pipe) or clipboard, repair the
decoded files and apply them to the working tree.

Example: pbpaste | stf -e css`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Completion != "" {
			return handleCompletion(cmd)
		}

		if cfg.Undo && cfg.Redo {
			return fmt.Errorf("error: --undo and --redo are mutually exclusive")
		}

		normalizeExtensions()

		appCfg := &Config{
			Protocol:   cfg.Protocol,
			PolicyPath: cfg.PolicyPath,
			Root:       cfg.Root,
			Undo:       cfg.Undo,
			Redo:       cfg.Redo,
			FixDiffs:   cfg.FixDiffs,
			UseNvim:    cfg.UseNvim,
			Verbose:    cfg.Verbose,
			Extensions: cfg.Extensions,
			Files:      cfg.Files,
		}

		app, err := NewApp(appCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		if cfg.FixDiffs {
			_, err := app.Execute()
			return err
		}

		ui := NewTUI(app, cfg.NoAnimation)
		return ui.Run()
	},
}

func handleCompletion(cmd *cobra.Command) error {
	switch cfg.Completion {
	case "bash":
		return cmd.Root().GenBashCompletion(os.Stdout)
	case "zsh":
		return cmd.Root().GenZshCompletion(os.Stdout)
	case "fish":
		return cmd.Root().GenFishCompletion(os.Stdout, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
	default:
		return fmt.Errorf("unsupported shell for completion: %s", cfg.Completion)
	}
}

func normalizeExtensions() {
	for i, ext := range cfg.Extensions {
		if len(ext) > 0 && ext[0] != '.' {
			cfg.Extensions[i] = "." + ext
		}
	}
}

func init() {
	rootCmd.Flags().StringVar(&cfg.Completion, "completion", "", "Generate completion script")
	rootCmd.Flags().StringVarP(&cfg.Protocol, "protocol", "p", "auto", "Stream protocol: auto, json, marker, markdown")
	rootCmd.Flags().StringVarP(&cfg.PolicyPath, "config", "c", "", "Path to policy config file")
	rootCmd.Flags().StringVar(&cfg.Root, "root", "", "Project root (default: cwd)")
	rootCmd.Flags().BoolVarP(&cfg.FixDiffs, "fix-diffs", "o", false, "Print corrected diff blocks and exit")
	rootCmd.Flags().BoolVar(&cfg.UseNvim, "nvim", false, "Apply files into neovim buffers")
	rootCmd.Flags().BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable progress animation")
	rootCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().StringSliceVarP(&cfg.Extensions, "extension", "e", []string{}, "Filter by extension")
	rootCmd.Flags().StringSliceVarP(&cfg.Files, "file", "f", []string{}, "Filter by files")
	rootCmd.Flags().BoolVarP(&cfg.Undo, "undo", "u", false, "Undo last operation")
	rootCmd.Flags().BoolVarP(&cfg.Redo, "redo", "r", false, "Redo last operation")

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
}

func Execute() error {
	return rootCmd.Execute()
}
