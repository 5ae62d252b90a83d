package email_test

import (
	"testing"
	"time"

	smtpmock "github.com/mocktools/go-smtp-mock/v2"
	"github.com/stretchr/testify/require"

	"github.com/gitvault/gitvault/internal/testlogging"
	"github.com/gitvault/gitvault/notification/sender"
	"github.com/gitvault/gitvault/notification/sender/email"
)

func TestEmailProvider(t *testing.T) {
	ctx := testlogging.Context(t)

	srv := smtpmock.New(smtpmock.ConfigurationAttr{})
	require.NoError(t, srv.Start())

	defer srv.Stop() //nolint:errcheck

	p, err := sender.GetSender(ctx, email.ProviderType, &email.Options{
		SMTPServer: "localhost",
		SMTPPort:   srv.PortNumber(),
		From:       "backups@example.com",
		To:         "oncall@example.com",
	})
	require.NoError(t, err)

	require.Equal(t, "SMTP server: \"localhost\", Mail from: \"backups@example.com\" Mail to: \"oncall@example.com\" Format: \"txt\"", p.Summary())

	require.NoError(t, p.Send(ctx, &sender.Message{
		Subject: "Test",
		Body:    "backup finished\nall good",
		Headers: map[string]string{"X-Gitvault-Severity": "success"},
	}))

	require.Eventually(t, func() bool {
		return len(srv.Messages()) == 1
	}, 10*time.Second, 100*time.Millisecond)

	msg := srv.Messages()[0].MsgRequest()

	require.Contains(t, msg, "Subject: Test\r\n")
	require.Contains(t, msg, "From: backups@example.com\r\n")
	require.Contains(t, msg, "To: oncall@example.com\r\n")
	require.Contains(t, msg, "X-Gitvault-Severity: success\r\n")
	require.Contains(t, msg, "backup finished\r\nall good")
}

func TestEmailProvider_Invalid(t *testing.T) {
	ctx := testlogging.Context(t)

	cases := []struct {
		opt       email.Options
		wantError string
	}{
		{opt: email.Options{}, wantError: "SMTP server must be provided"},
		{opt: email.Options{SMTPServer: "some.server.com"}, wantError: "From address must be provided"},
		{opt: email.Options{SMTPServer: "some.server.com", From: "some@example.com"}, wantError: "To address must be provided"},
	}

	for _, tc := range cases {
		_, err := sender.GetSender(ctx, email.ProviderType, &tc.opt)
		require.ErrorContains(t, err, tc.wantError)
	}
}
