package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ringload",
	Short: "Load generator over persistent TCP/UDP connections",
	Long: `ringload keeps a fixed set of connections open against one or more
endpoints and drives request/response traffic through them.

Settings come from an optional config file; flags given on the command line
override it.

Examples:
  ringload -a "127.0.0.1:7000" -w 16 -d 30s     # 30 seconds of TCP echo load
  ringload -n udp -a "10.0.0.1:53" --hex --ammo queries.txt
  ringload -c load.yaml --metrics-addr :9100    # Expose Prometheus metrics
  ringload -c load.yaml --db runs.db            # Keep the run summary`,
	Version:      version,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		_, err = runLoad(ctx, config, cmd.OutOrStdout())
		return err
	},
}

func init() {
	bindFlags(rootCmd.Flags())
}

func loadConfig(cmd *cobra.Command) (*LoadConfig, error) {
	config := NewLoadConfig()
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		var err error
		if config, err = ReadConfig(path); err != nil {
			return nil, err
		}
	}
	applyFlags(config, cmd.Flags())
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}
