package commands

import (
	"log/slog"

	"campussync/internal/credentials"
	"campussync/internal/telemetry"
	"campussync/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var credentialsSecret string

func init() {
	credentialsCmd.Flags().StringVar(&credentialsSecret, "secret", "", "Use this secret instead of deriving one from the national id.")
	rootCmd.AddCommand(credentialsCmd)
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials <user-id> <login-id> <national-id> [--secret <secret>]",
	Short: "Stores the portal credentials of a user.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		creds := credentials.Credentials{
			LoginID:        args[1],
			NationalID:     args[2],
			SecretOverride: credentialsSecret,
		}
		_, err := credentials.DeriveSecret(creds)
		if err != nil {
			serviceutil.Fatal("derive secret", err)
		}

		ctx := cmd.Context()
		cfg := loadConfig()
		st, database := openStore(ctx, cfg, telemetry.SlogAPI{})
		defer database.Close()

		err = st.SetCredentials(ctx, args[0], creds)
		if err != nil {
			serviceutil.Fatal("store credentials", err)
		}
		slog.Info("stored credentials", "user_id", args[0], "login_id", creds.LoginID)
	},
}
