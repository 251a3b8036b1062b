package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/hostapi"
	"github.com/infinitymatryoshka/risuai-plugin-builder/pkg/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the connection to the RisuAI instance",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("output", "o", "", "Output format (json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	h, err := newHost(cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	client, ok := h.(*hostapi.Client)
	if !ok {
		// A local data directory has no bridge to probe.
		pterm.Info.Printf("Local data directory, deployment: %s\n", h.Deployment())
		return nil
	}

	info, err := client.Status(cmd.Context())
	if err != nil {
		pterm.Error.Println("Could not reach the RisuAI bridge. Is the app running with the plugin enabled?")
		return fmt.Errorf("status request failed: %w", err)
	}

	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	writable := "yes"
	if !h.Assets().CanWrite() {
		writable = "no"
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Deployment", util.OrDash(info.Deployment)})
	rows = append(rows, []string{"App version", util.OrDash(info.Version)})
	rows = append(rows, []string{"Plugins", fmt.Sprintf("%d", info.Plugins)})
	rows = append(rows, []string{"Asset store writable", writable})
	PrintTableNoPad(rows, true)
	return nil
}
