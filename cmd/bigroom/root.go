package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ByBren-LLC/bigroom/cmd/bigroom/internal"
	"github.com/ByBren-LLC/bigroom/internal/config"
	"github.com/ByBren-LLC/bigroom/pkg/version"
)

// appConfig and appLogger are populated by loadConfig before any
// subcommand runs.
var (
	appConfig *config.Config
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bigroom",
	Short: "bigroom - Agile Release Train planning engine",
	Long: `bigroom plans a Program Increment for an Agile Release Train: it
analyzes dependencies across the backlog, decomposes oversized stories,
scores work with WSJF, allocates items into iterations under capacity
buffers, and assesses whether the resulting plan is ready to commit.

Planning scenarios are YAML documents carrying work items, iterations,
and teams. See 'bigroom plan --help' for the document format.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig is called before any command runs to load configuration
func loadConfig(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "invalid flags", err)
	}

	// version, completion, and help never need configuration
	switch cmd.Name() {
	case "version", "completion", "help":
		return nil
	}

	path := flags.ConfigFile
	if path == "" {
		path = os.Getenv("BIGROOM_CONFIG")
	}
	if path == "" {
		path = "bigroom.yaml"
	}

	loader := config.NewLoader(config.NewValidator())
	cfg, err := loader.LoadWithDefaults(path)
	if err != nil {
		return err
	}

	if flags.IsVerbose() {
		cfg.Logging.Level = "debug"
	}
	if flags.IsQuiet() {
		cfg.Logging.Level = "error"
	}

	appConfig = cfg
	appLogger = cfg.Logging.Logger(cmd.ErrOrStderr())
	return nil
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(decomposeCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.String())
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for bigroom.

To load completions:

Bash:

  $ source <(bigroom completion bash)

Zsh:

  $ bigroom completion zsh > "${fpath[1]}/_bigroom"

Fish:

  $ bigroom completion fish | source

PowerShell:

  PS> bigroom completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			_ = cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			_ = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			_ = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			_ = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}
