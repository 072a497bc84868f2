package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	var accountsCommand = &cobra.Command{
		Use:   "accounts",
		Short: "List connected accounts",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := newApp()
			if err != nil {
				bootstrapLogger.Error("startup err", zap.Error(err))
				return
			}
			defer app.close()

			accounts, err := app.authService.Accounts(context.Background())
			if err != nil {
				fmt.Fprintln(os.Stderr, "listing accounts failed:", err)
				return
			}
			if len(accounts) == 0 {
				fmt.Println("no connected accounts")
				return
			}
			for _, a := range accounts {
				line := a.Account
				if a.UserName != "" {
					line += "  " + a.UserName
				}
				if a.UserEmail != "" {
					line += "  <" + a.UserEmail + ">"
				}
				fmt.Println(line)
			}
		},
	}
	rootCmd.AddCommand(accountsCommand)
}
