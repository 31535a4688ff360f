package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ironlog/ironlog/internal/identity"
	"github.com/ironlog/ironlog/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "setup",
	Short:   "Sign in with an access token",
	Long: `Store an access token for the sync authority. The token's subject is
the account rows are synced under. A running daemon picks the new token up
immediately.

Without --token you are prompted for it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")

		if token == "" {
			input := huh.NewInput().
				Title("Access token").
				Description("Paste the token issued by your sync server").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(func(s string) error {
					_, err := identity.ParseToken(strings.TrimSpace(s), time.Now())
					return err
				})
			if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
				return fmt.Errorf("login cancelled: %w", err)
			}
		}
		token = strings.TrimSpace(token)

		provider, err := identity.NewFileProvider(cfg.Identity.TokenPath, &identity.Config{Logger: sink.Logger("identity")})
		if err != nil {
			return err
		}
		if err := provider.Save(token); err != nil {
			return err
		}

		claims, err := identity.ParseToken(token, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("%s Signed in as %s\n", ui.RenderPass("✓"), claims.UserID)
		if claims.ExpiresAt != nil {
			fmt.Printf("   Token expires %s\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "setup",
	Short:   "Remove the stored access token",
	Long: `Remove the stored access token. Local data is kept and syncing pauses
until you sign in again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := identity.NewFileProvider(cfg.Identity.TokenPath, &identity.Config{Logger: sink.Logger("identity")})
		if err != nil {
			return err
		}
		if err := provider.Clear(); err != nil {
			return err
		}
		fmt.Printf("%s Signed out\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	loginCmd.Flags().String("token", "", "Access token (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
