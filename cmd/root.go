// Package cmd wires the risuctl command tree.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zalando/go-keyring"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/hostapi"
)

const (
	keyringService = "risuctl"
	keyringUser    = "bridge-token"
)

var rootCmd = &cobra.Command{
	Use:   "risuctl",
	Short: "Back up and restore RisuAI settings",
	Long: `risuctl talks to a running RisuAI instance (or a local data
directory) and moves its settings database and binary assets in and out
of portable ZIP archives.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A .env next to the binary is a convenience for development;
		// missing is the normal case.
		_ = godotenv.Load()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			pterm.EnableDebugMessages()
		}
	},
}

func init() {
	// Accept underscore spellings of multi-word flags.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug output")
	rootCmd.PersistentFlags().String("url", "", "Bridge URL of the running RisuAI instance (or RISU_BRIDGE_URL)")
	rootCmd.PersistentFlags().String("data-dir", "", "Local RisuAI data directory instead of a bridge (or RISU_DATA_DIR)")
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	return fang.Execute(ctx, rootCmd)
}

// bridgeToken resolves the API token: flag-free, environment first, then
// the OS keyring where `risuctl auth set-token` stored it.
func bridgeToken() string {
	if tok := strings.TrimSpace(os.Getenv("RISU_API_TOKEN")); tok != "" {
		return tok
	}
	tok, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return ""
	}
	return tok
}

// newHost builds the host for this invocation: a local data directory
// when one is given, otherwise the HTTP bridge.
func newHost(cmd *cobra.Command) (hostapi.Host, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = os.Getenv("RISU_DATA_DIR")
	}
	if dataDir != "" {
		local, err := hostapi.OpenLocal(dataDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = os.Getenv("RISU_BRIDGE_URL")
	}
	if url == "" {
		return nil, fmt.Errorf("no RisuAI instance configured: pass --url/--data-dir or set RISU_BRIDGE_URL/RISU_DATA_DIR")
	}
	return hostapi.NewClient(url, bridgeToken()), nil
}

// PrintTableNoPad renders rows as a borderless table, with a header row
// when hasHeader is set.
func PrintTableNoPad(rows pterm.TableData, hasHeader bool) {
	table := pterm.DefaultTable.WithData(rows)
	if hasHeader {
		table = table.WithHasHeader()
	}
	if err := table.Render(); err != nil {
		pterm.Error.Printf("Failed to render table: %v\n", err)
	}
}
