package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/jobmail/internal/bootstrap"
	"github.com/cuongbtq/jobmail/internal/mail"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize read-only Gmail access",
	Long: `Prints the Google consent URL, reads the authorization code from stdin
and saves the resulting token to mail.token_file.`,
	RunE: runAuth,
}

var authCode string

func init() {
	authCmd.Flags().StringVar(&authCode, "code", "", "Authorization code (prompted for when empty)")
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	if cfg.Mail.TokenFile == "" {
		return fmt.Errorf("mail.token_file is not set")
	}

	oauthCfg, err := mail.OAuthConfig(bootstrap.GmailConfig(&cfg.Mail))
	if err != nil {
		return err
	}

	code := authCode
	if code == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Open this link in your browser and paste the authorization code:\n\n%s\n\nCode: ",
			mail.AuthCodeURL(oauthCfg, uuid.NewString()))

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read authorization code: %w", err)
		}
		code = strings.TrimSpace(line)
	}
	if code == "" {
		return fmt.Errorf("authorization code is empty")
	}

	if err := mail.ExchangeAndSave(cmd.Context(), oauthCfg, code, cfg.Mail.TokenFile); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.Mail.TokenFile)
	return err
}
