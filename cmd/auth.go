package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the bridge API token",
}

var authSetTokenCmd = &cobra.Command{
	Use:   "set-token [token]",
	Short: "Store the bridge API token in the OS keyring",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthSetToken,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored token and its expiry",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE:  runAuthClear,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetTokenCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authClearCmd)
}

func runAuthSetToken(cmd *cobra.Command, args []string) error {
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		input := pterm.DefaultInteractiveTextInput.WithMask("*")
		entered, err := input.Show("Bridge API token")
		if err != nil {
			return err
		}
		token = entered
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty token")
	}

	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	pterm.Success.Println("Token stored")

	if exp, ok := tokenExpiry(token); ok && time.Until(exp) < 0 {
		pterm.Warning.Printf("Token already expired at %s\n", exp.Format(time.RFC3339))
	}
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	token := bridgeToken()
	if token == "" {
		pterm.Info.Println("No token configured")
		return nil
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Token", maskToken(token)})
	if exp, ok := tokenExpiry(token); ok {
		state := "valid"
		if time.Until(exp) < 0 {
			state = "expired"
		}
		rows = append(rows, []string{"Expires", exp.Format(time.RFC3339)})
		rows = append(rows, []string{"State", state})
	}
	PrintTableNoPad(rows, true)
	return nil
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil {
		if err == keyring.ErrNotFound {
			pterm.Info.Println("No token stored")
			return nil
		}
		return fmt.Errorf("clear token: %w", err)
	}
	pterm.Success.Println("Token removed")
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// bridge is the verifier, this is display only.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}
