package cli

import (
	"fmt"
	"os"

	"notifyhub/internal/config"
	"notifyhub/internal/usecase"
	"notifyhub/pkg/jwt"

	"github.com/spf13/cobra"
)

func Main() {
	var cfgPath string

	root := &cobra.Command{
		Use:          "notifyhub",
		Short:        "Real-time notification hub",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (yaml)")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(tokenCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func tokenCmd(cfgPath *string) *cobra.Command {
	var userId string
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			authUc := usecase.NewAuthUsecase(jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTTL))
			token, err := authUc.IssueToken(userId, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userId, "user", "", "user id to put in the sub claim")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
