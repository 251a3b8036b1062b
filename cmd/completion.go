package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for risuctl.

To load completions:

Bash:
  $ source <(risuctl completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ risuctl completion bash > /etc/bash_completion.d/risuctl
  # macOS:
  $ risuctl completion bash > $(brew --prefix)/etc/bash_completion.d/risuctl

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ risuctl completion zsh > "${fpath[1]}/_risuctl"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ risuctl completion fish | source

  # To load completions for each session, execute once:
  $ risuctl completion fish > ~/.config/fish/completions/risuctl.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
