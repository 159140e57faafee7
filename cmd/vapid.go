package cmd

import (
	"github.com/circa10a/push-timer/internal/server/secrets"
	"github.com/spf13/cobra"
)

var vapidCmd = &cobra.Command{
	Use:   "vapid",
	Short: "Manage VAPID keys used to sign push messages",
}

var generateVAPIDCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print a new VAPID keypair",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := secrets.GenerateVAPIDKeys()
		if err != nil {
			return err
		}

		formatOutput(cmd, keys, false)
		return nil
	},
}

func init() {
	generateVAPIDCmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "Output format (json, yaml)")
	generateVAPIDCmd.Flags().BoolVar(&useColor, "color", true, "Enable colorized output")

	vapidCmd.AddCommand(generateVAPIDCmd)
	rootCmd.AddCommand(vapidCmd)
}
