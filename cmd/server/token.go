package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"medword/internal/pkg/jwtutil"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bridge token for the task pane",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		token, err := jwtutil.GenerateToken(cfg.Auth.JWTSecret, cfg.JWTExpiration(), tokenSubject, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "taskpane", "Token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "user", "Role claim; the configured admin role grants shared prompt and source writes")
}
