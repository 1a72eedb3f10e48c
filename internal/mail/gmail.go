// Package mail reads recent messages from a mailbox and hands them to the
// ingestion pipeline as RawMessages.
package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// GmailConfig holds Gmail connector settings
type GmailConfig struct {
	// CredentialsFile is the OAuth client secret downloaded from the Google console
	CredentialsFile string
	// TokenFile holds the authorized user token
	TokenFile string
	// User is the mailbox to read, "me" for the authorized user
	User string
	// Query is an optional Gmail search query, e.g. "newer_than:7d"
	Query string
}

// GmailSource fetches messages through the Gmail API with a read-only scope
type GmailSource struct {
	svc    *gmail.Service
	user   string
	query  string
	logger *slog.Logger
}

// NewGmailSource authorizes with the stored token and builds the Gmail service.
// Missing or unreadable credential files are configuration errors.
func NewGmailSource(ctx context.Context, cfg *GmailConfig, logger *slog.Logger) (*GmailSource, error) {
	oauthCfg, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}

	tok, err := loadToken(cfg.TokenFile)
	if err != nil {
		return nil, domain.NewConfigurationError("mail", fmt.Errorf("failed to load token %s: %w", cfg.TokenFile, err))
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	user := cfg.User
	if user == "" {
		user = "me"
	}

	logger.Info("Gmail source ready",
		slog.String("user", user),
		slog.String("query", cfg.Query),
	)

	return &GmailSource{
		svc:    svc,
		user:   user,
		query:  cfg.Query,
		logger: logger,
	}, nil
}

// FetchRecent lists the newest limit messages and loads each in full format
func (s *GmailSource) FetchRecent(ctx context.Context, limit int) ([]domain.RawMessage, error) {
	call := s.svc.Users.Messages.List(s.user).MaxResults(int64(limit)).Context(ctx)
	if s.query != "" {
		call = call.Q(s.query)
	}

	list, err := call.Do()
	if err != nil {
		return nil, domain.NewTransportError("gmail.list", err)
	}

	msgs := make([]domain.RawMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		m, err := s.svc.Users.Messages.Get(s.user, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, domain.NewTransportError("gmail.get", fmt.Errorf("message %s: %w", ref.Id, err))
		}
		msg, err := MessageFromGmail(m)
		if err != nil {
			s.logger.Warn("Message body could not be decoded, continuing with headers only",
				slog.String("message_id", ref.Id),
				slog.Any("error", err),
			)
		}
		msgs = append(msgs, msg)
	}

	s.logger.Debug("Fetched Gmail messages",
		slog.Int("listed", len(list.Messages)),
		slog.Int("fetched", len(msgs)),
	)
	return msgs, nil
}

// OAuthConfig reads the client secret file and returns a read-only Gmail OAuth config
func OAuthConfig(cfg *GmailConfig) (*oauth2.Config, error) {
	if cfg == nil || cfg.CredentialsFile == "" {
		return nil, domain.NewConfigurationError("mail", errors.New("gmail credentials file is not set"))
	}

	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, domain.NewConfigurationError("mail", fmt.Errorf("failed to read credentials: %w", err))
	}

	oauthCfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, domain.NewConfigurationError("mail", fmt.Errorf("failed to parse credentials: %w", err))
	}
	return oauthCfg, nil
}

// AuthCodeURL returns the consent page URL for an offline read-only token
func AuthCodeURL(oauthCfg *oauth2.Config, state string) string {
	return oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeAndSave trades an authorization code for a token and writes it to path
func ExchangeAndSave(ctx context.Context, oauthCfg *oauth2.Config, code, path string) error {
	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return saveToken(path, tok)
}

func loadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, errors.New("token file is not set")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}
