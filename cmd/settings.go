package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/backup"
	"github.com/infinitymatryoshka/risuai-plugin-builder/internal/hostapi"
	"github.com/infinitymatryoshka/risuai-plugin-builder/pkg/util"
)

// SettingsCmd handles settings archive operations independent of cobra.
type SettingsCmd struct {
	host hostapi.Host
}

// SettingsExportInput holds input for exporting a settings archive.
type SettingsExportInput struct {
	IncludeAccount bool
	Passphrase     string
	Path           string
	Open           bool
}

// Export produces a settings archive and writes it to disk.
func (c SettingsCmd) Export(ctx context.Context, in SettingsExportInput) error {
	spinner, _ := pterm.DefaultSpinner.Start("Exporting settings...")

	raw, filename, report, err := backup.Export(ctx, c.host, backup.ExportOptions{
		ExcludeAccount: !in.IncludeAccount,
		Passphrase:     in.Passphrase,
	})
	if err != nil {
		spinner.Fail("Export failed")
		return err
	}
	spinner.Success(fmt.Sprintf("Exported %d assets", report.AssetsExported))

	printReport(report)

	path, err := backup.Deliver(raw, filename, backup.DeliverOptions{Path: in.Path, Open: in.Open})
	if err != nil {
		return err
	}
	pterm.Success.Printf("Wrote %s\n", path)
	return nil
}

// SettingsImportInput holds input for importing a settings archive.
type SettingsImportInput struct {
	File            string
	Passphrase      string
	PreserveAccount bool
	Escalation      string
	SkipConfirm     bool
}

// Import restores a settings archive into the live database.
func (c SettingsCmd) Import(ctx context.Context, in SettingsImportInput) error {
	raw, err := os.ReadFile(in.File)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	a, err := backup.OpenArchive(raw, in.Passphrase)
	if err != nil {
		return err
	}

	if err := a.Snapshot.CompatibleWith(backup.ExportVersion); err != nil {
		return err
	}

	policy, err := parseEscalation(in.Escalation)
	if err != nil {
		return err
	}

	printArchiveSummary(a)

	if !in.SkipConfirm {
		pterm.DefaultInteractiveConfirm.DefaultText = "This replaces the current settings. Continue?"
		ok, _ := pterm.DefaultInteractiveConfirm.Show()
		if !ok {
			pterm.Info.Println("Import cancelled")
			return nil
		}
	}

	spinner, _ := pterm.DefaultSpinner.Start("Importing settings...")
	report, err := backup.Import(ctx, c.host, a, backup.ImportOptions{
		PreserveAccount: in.PreserveAccount,
		Escalation:      policy,
	})
	if err != nil {
		spinner.Fail("Import failed")
		if report != nil {
			printReport(report)
		}
		return err
	}
	spinner.Success(fmt.Sprintf("Restored %d assets", report.AssetsRestored))

	printReport(report)
	pterm.Success.Println("Settings imported")
	return nil
}

// SettingsInspectInput holds input for inspecting an archive.
type SettingsInspectInput struct {
	File       string
	Passphrase string
	Output     string
}

// Inspect prints an archive's metadata and contents without touching the
// live database.
func Inspect(in SettingsInspectInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	raw, err := os.ReadFile(in.File)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	a, err := backup.OpenArchive(raw, in.Passphrase)
	if err != nil {
		return err
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(a.Snapshot)
	}

	printArchiveSummary(a)

	var total int64
	for _, asset := range a.ModuleAssets {
		total += int64(len(asset.Data))
	}
	for _, icon := range a.PersonaIcons {
		total += int64(len(icon.Data))
	}
	if a.Background != nil {
		total += int64(len(a.Background.Data))
	}

	rows := pterm.TableData{{"Contents", "Count"}}
	rows = append(rows, []string{"Module assets", fmt.Sprintf("%d", len(a.ModuleAssets))})
	rows = append(rows, []string{"Persona icons", fmt.Sprintf("%d", len(a.PersonaIcons))})
	background := "no"
	if a.Background != nil {
		background = "yes"
	}
	rows = append(rows, []string{"Custom background", background})
	rows = append(rows, []string{"Total asset size", util.FormatBytes(total)})
	PrintTableNoPad(rows, true)

	for _, w := range a.Warnings {
		pterm.Warning.Println(w)
	}
	return nil
}

func printArchiveSummary(a *backup.Archive) {
	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Plugin", a.Snapshot.PluginName})
	rows = append(rows, []string{"Export version", a.Snapshot.ExportVersion})
	rows = append(rows, []string{"Exported", a.Snapshot.ExportDate.Format(time.RFC3339)})
	rows = append(rows, []string{"Account included", fmt.Sprintf("%t", !a.Snapshot.AccountExcluded)})
	PrintTableNoPad(rows, true)
}

func printReport(r *backup.Report) {
	for _, s := range r.Skipped {
		pterm.Warning.Printf("Skipped %s: %s\n", s.Ref, s.Reason)
	}
	for _, w := range r.Warnings {
		pterm.Warning.Println(w)
	}
}

func parseEscalation(s string) (backup.EscalationPolicy, error) {
	switch s {
	case "", "auto":
		return backup.EscalateAuto, nil
	case "never":
		return backup.EscalateNever, nil
	case "always":
		return backup.EscalateAlways, nil
	}
	return 0, fmt.Errorf("unsupported --on-asset-error value %q: use auto, never or always", s)
}

// --- Cobra wiring ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Export and import RisuAI settings archives",
}

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export settings to a ZIP archive",
	Long:  "Snapshot the settings database and its binary assets into a portable ZIP archive",
	Args:  cobra.NoArgs,
	RunE:  runSettingsExport,
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <archive>",
	Short: "Import a settings archive",
	Long:  "Restore settings and assets from an archive, keeping the live characters and account",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsImport,
}

var settingsInspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Show an archive's metadata and contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsInspect,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsExportCmd)
	settingsCmd.AddCommand(settingsImportCmd)
	settingsCmd.AddCommand(settingsInspectCmd)

	settingsExportCmd.Flags().Bool("include-account", false, "Include account credentials in the archive")
	settingsExportCmd.Flags().String("passphrase", "", "Seal the archive with a passphrase")
	settingsExportCmd.Flags().StringP("output", "o", "", "Output file or directory (default: current directory)")
	settingsExportCmd.Flags().Bool("open", false, "Open the archive with the OS default handler afterwards")

	settingsImportCmd.Flags().String("passphrase", "", "Passphrase for a sealed archive")
	settingsImportCmd.Flags().Bool("preserve-account", true, "Keep the live account instead of the archived one")
	settingsImportCmd.Flags().String("on-asset-error", "auto", "What a failed asset restore does: auto, never or always abort")
	settingsImportCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	settingsInspectCmd.Flags().String("passphrase", "", "Passphrase for a sealed archive")
	settingsInspectCmd.Flags().StringP("output", "o", "", "Output format (json)")
}

func runSettingsExport(cmd *cobra.Command, args []string) error {
	h, err := newHost(cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	includeAccount, _ := cmd.Flags().GetBool("include-account")
	passphrase, _ := cmd.Flags().GetString("passphrase")
	output, _ := cmd.Flags().GetString("output")
	open, _ := cmd.Flags().GetBool("open")

	c := SettingsCmd{host: h}
	return c.Export(cmd.Context(), SettingsExportInput{
		IncludeAccount: includeAccount,
		Passphrase:     passphrase,
		Path:           output,
		Open:           open,
	})
}

func runSettingsImport(cmd *cobra.Command, args []string) error {
	h, err := newHost(cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	passphrase, _ := cmd.Flags().GetString("passphrase")
	preserveAccount, _ := cmd.Flags().GetBool("preserve-account")
	escalation, _ := cmd.Flags().GetString("on-asset-error")
	yes, _ := cmd.Flags().GetBool("yes")

	c := SettingsCmd{host: h}
	return c.Import(cmd.Context(), SettingsImportInput{
		File:            args[0],
		Passphrase:      passphrase,
		PreserveAccount: preserveAccount,
		Escalation:      escalation,
		SkipConfirm:     yes,
	})
}

func runSettingsInspect(cmd *cobra.Command, args []string) error {
	passphrase, _ := cmd.Flags().GetString("passphrase")
	output, _ := cmd.Flags().GetString("output")

	return Inspect(SettingsInspectInput{
		File:       args[0],
		Passphrase: passphrase,
		Output:     output,
	})
}
