// AngelaMos | 2026
// mailer_test.go

package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbigmic/dziennik-pracy/internal/config"
	"github.com/bbigmic/dziennik-pracy/internal/core"
)

var testConfig = config.MailConfig{
	SendGridAPIKey: "SG.test",
	FromEmail:      "hello@dziennik-pracy.app",
	FromName:       "Dziennik Pracy",
	Timeout:        2 * time.Second,
}

func TestSendWelcome(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := newMailer(testConfig, "https://dziennik-pracy.app", srv.URL)

	err := m.SendWelcome(context.Background(), "ala@example.com", "Ala")

	require.NoError(t, err)
	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, "Bearer SG.test", gotAuth)
	assert.Equal(t, "Welcome to Dziennik Pracy", gotBody["subject"])

	from, _ := gotBody["from"].(map[string]any)
	assert.Equal(t, "hello@dziennik-pracy.app", from["email"])
}

func TestSendWelcomeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	m := newMailer(testConfig, "https://dziennik-pracy.app", srv.URL)

	err := m.SendWelcome(context.Background(), "ala@example.com", "Ala")

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstream)
}
