// Package cli implements the sunny command-line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/sunny-gateway/internal/config"
	"github.com/akylbek/payment-system/sunny-gateway/internal/sdk"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

// app carries the state shared by every command of one invocation.
type app struct {
	configPath  string
	environment string
	apiKey      string
	verbose     bool

	out    io.Writer
	client *sdk.SDK
	cfg    *config.Client
}

// loadSDK builds the SDK from the config file, env and flags. A client
// injected up front is kept.
func (a *app) loadSDK() error {
	cfg, err := config.LoadClient(a.configPath)
	if err != nil {
		return err
	}
	if a.environment != "" {
		cfg.Environment = a.environment
	}
	if a.apiKey != "" {
		cfg.APIKey = a.apiKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if a.client != nil {
		return nil
	}
	client, err := sdk.New(sdk.FromClientConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	a.client = client
	return nil
}

// lockedWriter serialises writes from command goroutines and the
// session and bulk-tracker hooks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// NewRootCommand returns the sunny command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{out: os.Stdout})
}

func newRootCommand(a *app) *cobra.Command {
	if _, ok := a.out.(*lockedWriter); !ok {
		a.out = &lockedWriter{w: a.out}
	}
	root := &cobra.Command{
		Use:   "sunny",
		Short: "Sunny payments client",
		Long: `sunny creates payments against the Sunny gateway and follows them until they settle.

In sandbox mode every call runs against an in-process simulator.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.verbose {
				return telemetry.InitTelemetry("sunny-cli")
			}
			return nil
		},
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVar(&a.configPath, "config", config.ClientConfigPath(), "Config file")
	root.PersistentFlags().StringVar(&a.environment, "env", "", "Override environment (sandbox|production)")
	root.PersistentFlags().StringVar(&a.apiKey, "api-key", "", "Override API key")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable structured logs")

	root.AddCommand(newPayCommand(a))
	root.AddCommand(newStatusCommand(a))
	root.AddCommand(newCancelCommand(a))
	root.AddCommand(newTransactionsCommand(a))
	root.AddCommand(newQRCommand(a))
	root.AddCommand(newCryptoCommand(a))
	root.AddCommand(newBulkCommand(a))
	root.AddCommand(newConfigCommand(a))
	root.AddCommand(newEventsCommand(a))
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context, version string) error {
	root := NewRootCommand()
	root.Version = version
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
