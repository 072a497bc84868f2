package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	var connectCommand = &cobra.Command{
		Use:   "connect",
		Short: "Sign in to a cloud account with a device code",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := newApp()
			if err != nil {
				bootstrapLogger.Error("startup err", zap.Error(err))
				return
			}
			defer app.close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			prompt, err := app.authService.Connect(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, "sign-in could not start:", err)
				return
			}
			fmt.Printf("To sign in, open %s and enter the code %s\n", prompt.VerificationURI, prompt.UserCode)
			fmt.Printf("The code expires at %s. Waiting for authorization...\n", prompt.ExpiresAt)

			result, err := app.authService.Wait(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, "sign-in failed:", err)
				return
			}
			fmt.Printf("Connected account %q", result.Account)
			if result.UserName != "" {
				fmt.Printf(" (%s)", result.UserName)
			}
			fmt.Println()
		},
	}
	rootCmd.AddCommand(connectCommand)
}
