package commands

import (
	"fmt"

	"refassist-backend/lib/serviceutil"
	"refassist-backend/services/keychain"

	"github.com/spf13/cobra"
)

var (
	keychainUsername *string
	keychainPassword *string
)

func init() {
	keychainUsername = keychainSetCmd.Flags().String("username", "", "Login username or email.")
	keychainPassword = keychainSetCmd.Flags().String("password", "", "Login password.")
	keychainSetCmd.MarkFlagRequired("username")
	keychainSetCmd.MarkFlagRequired("password")

	keychainCmd.AddCommand(keychainSetCmd)
	keychainCmd.AddCommand(keychainGetCmd)
	rootCmd.AddCommand(keychainCmd)
}

var keychainCmd = &cobra.Command{
	Use:   "keychain",
	Short: "Manages stored portal credentials.",
}

var keychainSetCmd = &cobra.Command{
	Use:   "set <namespace> <id> --username <user> --password <pass>",
	Short: "Stores a credential, e.g. 'keychain set scholarone mf ...'.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		kc := openKeychain(cmd.Context(), cfg)

		err := kc.SetCredential(cmd.Context(), args[0], args[1], keychain.Credential{
			Username: *keychainUsername,
			Password: *keychainPassword,
		})
		if err != nil {
			serviceutil.Fatal("failed to store credential", err)
		}
	},
}

var keychainGetCmd = &cobra.Command{
	Use:   "get <namespace> <id>",
	Short: "Prints the username stored for a credential.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		kc := openKeychain(cmd.Context(), cfg)

		cred, err := kc.GetCredential(cmd.Context(), args[0], args[1])
		if err != nil {
			serviceutil.Fatal("failed to read credential", err)
		}
		fmt.Println(cred.Username)
	},
}
