package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brendan.keane/hreq/internal/cli"
	"github.com/brendan.keane/hreq/internal/config"
	"github.com/brendan.keane/hreq/internal/errors"
	"github.com/brendan.keane/hreq/internal/logger"
	"github.com/brendan.keane/hreq/internal/openapi"
)

func main() {
	log.Logger = logger.SetupFromFlags(false, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		errors.PresentError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hreq [url]",
		Short: "Send HTTP requests with a native or raw-socket backend",
		Long: `hreq sends one HTTP request and prints the response.
The native backend handles redirects, content decoding, proxies and auth
negotiation. The fallback backend (--fallback) writes the request bytes
exactly as configured over a plain socket.

Relative paths are resolved against --server, or the servers of the
OpenAPI document given with --openapi.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: pathCompletion,
		PersistentPreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.NewHTTPHandler(commandLogger(cmd)).Execute(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(rootCmd.PersistentFlags())
	_ = rootCmd.RegisterFlagCompletionFunc("request", methodCompletion)
	_ = rootCmd.RegisterFlagCompletionFunc("output", fixedCompletion("text", "json", "yaml"))
	_ = rootCmd.RegisterFlagCompletionFunc("auth-scheme", fixedCompletion("BASIC", "DIGEST", "SPNEGO", "NTLM"))
	_ = rootCmd.RegisterFlagCompletionFunc("http-version", fixedCompletion("1.0", "1.1", "NONE"))
	_ = rootCmd.RegisterFlagCompletionFunc("server", serverCompletion)

	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(generateCompletionCmd())
	return rootCmd
}

func newMCPCmd() *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the http_request tool over MCP stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing an
http_request tool. Request flags given here become defaults for every call.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.NewMCPHandler(commandLogger(cmd)).Execute(cmd, args)
		},
	}
	config.RegisterMCPFlags(mcpCmd.Flags())
	return mcpCmd
}

// loadConfig resolves the configuration once and stores it on the command
// context for the handlers.
func loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
	return nil
}

func commandLogger(cmd *cobra.Command) zerolog.Logger {
	cfg, ok := config.FromContext(cmd.Context())
	if !ok {
		return logger.SetupFromFlags(false, false)
	}
	return logger.SetupFromFlags(cfg.Verbose, cfg.Debug)
}

func methodCompletion(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{"GET", "POST", "PUT", "DELETE"}, cobra.ShellCompDirectiveNoFileComp
}

func fixedCompletion(values ...string) cobra.CompletionFunc {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// serverCompletion offers the indices and URLs of the OpenAPI servers.
func serverCompletion(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil || cfg.OpenAPIURL == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	servers, err := openapi.NewSpec(nil, cfg.OpenAPIURL).Servers(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	suggestions := make([]string, 0, 2*len(servers))
	for i, server := range servers {
		suggestions = append(suggestions, strconv.Itoa(i), server)
	}
	return suggestions, cobra.ShellCompDirectiveNoFileComp
}

// pathCompletion offers the OpenAPI paths declaring an operation for the
// selected method. The shell filters by prefix.
func pathCompletion(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg, err := config.Load(cmd.Flags())
	if err != nil || cfg.OpenAPIURL == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	method := ""
	if cmd.Flags().Changed("request") {
		method = cfg.Method
	}
	paths, err := openapi.NewSpec(nil, cfg.OpenAPIURL).Paths(ctx, method)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return paths, cobra.ShellCompDirectiveNoFileComp
}

func generateCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:

  $ source <(hreq completion bash)

Zsh:

  $ source <(hreq completion zsh)

Fish:

  $ hreq completion fish | source

PowerShell:

  PS> hreq completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return fmt.Errorf("unsupported shell %q", args[0])
		},
	}
}
