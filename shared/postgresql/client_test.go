package postgresql

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		check  func(t *testing.T, u *url.URL)
	}{
		{
			name: "defaults sslmode to disable",
			config: Config{
				Host:     "localhost",
				Port:     5432,
				User:     "jobs",
				Password: "secret",
				Database: "jobs_db",
			},
			check: func(t *testing.T, u *url.URL) {
				assert.Equal(t, "postgres", u.Scheme)
				assert.Equal(t, "localhost:5432", u.Host)
				assert.Equal(t, "/jobs_db", u.Path)
				assert.Equal(t, "disable", u.Query().Get("sslmode"))
				pw, _ := u.User.Password()
				assert.Equal(t, "secret", pw)
			},
		},
		{
			name: "escapes password and sets optional params",
			config: Config{
				Host:            "db.internal",
				Port:            6543,
				User:            "jobs",
				Password:        "p@ss word'",
				Database:        "jobs_db",
				SSLMode:         "require",
				ApplicationName: "jobmail-api",
				ConnectTimeout:  10 * time.Second,
			},
			check: func(t *testing.T, u *url.URL) {
				pw, _ := u.User.Password()
				assert.Equal(t, "p@ss word'", pw)
				assert.Equal(t, "require", u.Query().Get("sslmode"))
				assert.Equal(t, "jobmail-api", u.Query().Get("application_name"))
				assert.Equal(t, "10", u.Query().Get("connect_timeout"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.config.DSN())
			require.NoError(t, err)
			tt.check(t, u)
		})
	}
}
