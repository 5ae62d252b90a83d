package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitvault/gitvault/internal/testlogging"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in           string
		hour, minute int
		wantErr      bool
	}{
		{in: "02:00", hour: 2, minute: 0},
		{in: "23:59", hour: 23, minute: 59},
		{in: "0:5", hour: 0, minute: 5},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "12", wantErr: true},
	}

	for _, tc := range cases {
		hour, minute, err := parseTimeOfDay(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			continue
		}

		require.NoError(t, err, tc.in)
		require.Equal(t, tc.hour, hour)
		require.Equal(t, tc.minute, minute)
	}
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "512 B", formatBytes(512))
	require.Equal(t, "1.0 KiB", formatBytes(1024))
	require.Equal(t, "1.5 MiB", formatBytes(3<<20/2))
	require.Equal(t, "2.0 GiB", formatBytes(2<<30))
}

func TestNotifyFlagsNoChannels(t *testing.T) {
	ctx := testlogging.Context(t)

	f := &notifyFlags{alertLevel: "all"}

	m, err := f.buildManager(ctx, "acme")
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestNotifyFlagsWebhook(t *testing.T) {
	ctx := testlogging.Context(t)

	f := &notifyFlags{alertLevel: "errors"}
	f.webhook.Endpoint = "https://example.com/hook"

	m, err := f.buildManager(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, m)

	f2 := &notifyFlags{alertLevel: "errors"}
	f2.webhook.Endpoint = "not-a-url"

	_, err = f2.buildManager(ctx, "acme")
	require.Error(t, err)
}

func TestNotifyFlagsTeams(t *testing.T) {
	ctx := testlogging.Context(t)

	f := &notifyFlags{alertLevel: "all"}
	f.teams.Endpoint = "https://example.webhook.office.com/flow"

	m, err := f.buildManager(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, m)

	f2 := &notifyFlags{alertLevel: "all"}
	f2.teams.Endpoint = "not-a-url"

	_, err = f2.buildManager(ctx, "acme")
	require.Error(t, err)
}
