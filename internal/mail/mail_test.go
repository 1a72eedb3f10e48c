package mail

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/cuongbtq/jobmail/internal/domain"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestMessageFromGmail(t *testing.T) {
	headers := []*gmail.MessagePartHeader{
		{Name: "From", Value: "jobs@example.com"},
		{Name: "Subject", Value: "Backend Intern – Acme Corp"},
		{Name: "Date", Value: "Wed, 1 May 2024 09:00:00 +0000"},
	}

	tests := []struct {
		name     string
		payload  *gmail.MessagePart
		wantBody string
	}{
		{
			name: "single part",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Headers:  headers,
				Body:     &gmail.MessagePartBody{Data: encode("Location: Remote")},
			},
			wantBody: "Location: Remote",
		},
		{
			name: "nested multipart prefers plain text",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Headers:  headers,
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>html</p>")}},
							{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("plain body")}},
						},
					},
				},
			},
			wantBody: "plain body",
		},
		{
			name: "html only falls back to text",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Headers:  headers,
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html; charset=UTF-8", Body: &gmail.MessagePartBody{Data: encode("<div>Role</div><div>Location: Remote</div>")}},
				},
			},
			wantBody: "Role\nLocation: Remote",
		},
		{
			name: "no body",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Headers:  headers,
			},
			wantBody: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := MessageFromGmail(&gmail.Message{Id: "18f0c", Payload: tt.payload})
			require.NoError(t, err)

			assert.Equal(t, "18f0c", msg.ID)
			assert.Equal(t, "Backend Intern – Acme Corp", msg.Subject)
			assert.Equal(t, "Wed, 1 May 2024 09:00:00 +0000", msg.Date)
			assert.Equal(t, tt.wantBody, msg.Body)
		})
	}
}

func TestMessageFromGmail_NilPayload(t *testing.T) {
	msg, err := MessageFromGmail(&gmail.Message{Id: "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.RawMessage{ID: "x"}, msg)
}

func TestMessageFromGmail_UndecodableBody(t *testing.T) {
	msg, err := MessageFromGmail(&gmail.Message{
		Id: "bad1",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers:  []*gmail.MessagePartHeader{{Name: "Subject", Value: "Backend Intern – Acme"}},
			Body:     &gmail.MessagePartBody{Data: "!!not base64!!"},
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode body")
	assert.Equal(t, "bad1", msg.ID)
	assert.Equal(t, "Backend Intern – Acme", msg.Subject)
	assert.Empty(t, msg.Body)
}

func TestDecodeBody(t *testing.T) {
	text := "Stipend: $1000?"
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{name: "padded", data: base64.URLEncoding.EncodeToString([]byte(text)), want: text},
		{name: "unpadded", data: base64.RawURLEncoding.EncodeToString([]byte(text)), want: text},
		{name: "invalid", data: "!!not base64!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBody(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><title>ignored</title><style>p{}</style></head>
<body><p>Hello <b>there</b></p><div>Location:   Remote</div>line one<br>line two<script>track()</script></body></html>`

	assert.Equal(t, "Hello there\nLocation: Remote\nline one\nline two", HTMLToText(html))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.json")
	content := `[
		{"id": "1", "subject": "A – B", "date": "2024-05-01", "body": "Location: Remote"},
		{"subject": "X", "date": "2024-05-02", "body": ""},
		{"id": "3", "subject": "C", "date": "2024-05-03", "body": ""}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	src := NewFileSource(path)

	t.Run("limit", func(t *testing.T) {
		msgs, err := src.FetchRecent(context.Background(), 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "1", msgs[0].ID)
		assert.Equal(t, "", msgs[1].ID)
		assert.Equal(t, "X", msgs[1].Subject)
	})

	t.Run("no limit", func(t *testing.T) {
		msgs, err := src.FetchRecent(context.Background(), 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 3)
	})

	t.Run("missing file is a transport error", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(dir, "nope.json")).FetchRecent(context.Background(), 1)
		assert.ErrorIs(t, err, domain.ErrTransport)
	})

	t.Run("malformed file is a transport error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
		_, err := NewFileSource(bad).FetchRecent(context.Background(), 1)
		assert.ErrorIs(t, err, domain.ErrTransport)
	})
}

func TestNewGmailSource_ConfigurationErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	creds := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{"installed": {
		"client_id": "id.apps.googleusercontent.com",
		"client_secret": "secret",
		"redirect_uris": ["http://localhost"],
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token"
	}}`), 0o600))

	tests := []struct {
		name string
		cfg  *GmailConfig
	}{
		{name: "no credentials file configured", cfg: &GmailConfig{}},
		{name: "credentials file missing", cfg: &GmailConfig{CredentialsFile: filepath.Join(dir, "missing.json")}},
		{name: "token file missing", cfg: &GmailConfig{CredentialsFile: creds, TokenFile: filepath.Join(dir, "token.json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGmailSource(context.Background(), tt.cfg, logger)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestOAuthConfig(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{"installed": {
		"client_id": "id.apps.googleusercontent.com",
		"client_secret": "secret",
		"redirect_uris": ["http://localhost"],
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token"
	}}`), 0o600))

	cfg, err := OAuthConfig(&GmailConfig{CredentialsFile: creds})
	require.NoError(t, err)
	assert.Equal(t, []string{gmail.GmailReadonlyScope}, cfg.Scopes)

	url := AuthCodeURL(cfg, "state-1")
	assert.Contains(t, url, "access_type=offline")
	assert.Contains(t, url, "state=state-1")
}
