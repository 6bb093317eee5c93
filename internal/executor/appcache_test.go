// File: internal/executor/appcache_test.go
package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
)

type countingDirectory struct {
	apps  []schemas.AppInfo
	err   error
	calls atomic.Int64
}

func (d *countingDirectory) ListLaunchable(context.Context) ([]schemas.AppInfo, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.apps, nil
}

func deviceApps() []schemas.AppInfo {
	return []schemas.AppInfo{
		{Label: "WhatsApp", Package: "com.whatsapp"},
		{Label: "Clock", Package: "com.google.android.deskclock"},
		{Label: "Calculator", Package: "com.google.android.calculator"},
		{Label: "Calendar", Package: "com.google.android.calendar"},
		{Label: "Firefox", Package: "org.mozilla.firefox"},
	}
}

func TestResolveLadder(t *testing.T) {
	dir := &countingDirectory{apps: deviceApps()}
	c := NewAppCache(dir, time.Minute, 0.60, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name   string
		query  string
		want   string
		wantOK bool
	}{
		{"exact label", "WhatsApp", "com.whatsapp", true},
		{"case and punctuation folded", "whatsapp!", "com.whatsapp", true},
		{"label ignoring spaces", "whats app", "com.whatsapp", true},
		{"unique label substring", "calcu", "com.google.android.calculator", true},
		{"unique package substring", "mozilla", "org.mozilla.firefox", true},
		{"fuzzy above floor", "wattsapp", "com.whatsapp", true},
		{"ambiguous prefix unresolved", "ca", "", false},
		{"nonsense", "zzzz", "", false},
		{"empty", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, ok := c.Resolve(ctx, tt.query)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, pkg)
		})
	}
}

func TestResolveAliasVerifiedAgainstSnapshot(t *testing.T) {
	// "clock" is an alias; the aliased package is installed here so the alias
	// applies even though the label also matches exactly.
	dir := &countingDirectory{apps: deviceApps()}
	c := NewAppCache(dir, time.Minute, 0.60, zap.NewNop())

	pkg, ok := c.Resolve(context.Background(), "clock")
	require.True(t, ok)
	assert.Equal(t, "com.google.android.deskclock", pkg)

	// An alias pointing at an uninstalled package is skipped; resolution then
	// proceeds down the ladder.
	pkg, ok = c.Resolve(context.Background(), "spotify")
	assert.False(t, ok)
	assert.Empty(t, pkg)
}

func TestSnapshotRespectsTTL(t *testing.T) {
	dir := &countingDirectory{apps: deviceApps()}
	c := NewAppCache(dir, time.Minute, 0.60, zap.NewNop())

	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	ctx := context.Background()
	_, ok := c.Resolve(ctx, "whatsapp")
	require.True(t, ok)
	_, _ = c.Resolve(ctx, "clock")
	assert.EqualValues(t, 1, dir.calls.Load(), "snapshot refetched within TTL")

	current = current.Add(2 * time.Minute)
	_, _ = c.Resolve(ctx, "whatsapp")
	assert.EqualValues(t, 2, dir.calls.Load(), "stale snapshot not refreshed")
}

func TestResolveDirectoryFailureFallsBackToAliases(t *testing.T) {
	dir := &countingDirectory{err: errors.New("device offline")}
	c := NewAppCache(dir, time.Minute, 0.60, zap.NewNop())

	pkg, ok := c.Resolve(context.Background(), "whatsapp")
	require.True(t, ok)
	assert.Equal(t, "com.whatsapp", pkg)

	_, ok = c.Resolve(context.Background(), "some unknown app")
	assert.False(t, ok)
}

func TestResolveStaleSnapshotSurvivesRefreshFailure(t *testing.T) {
	dir := &countingDirectory{apps: deviceApps()}
	c := NewAppCache(dir, time.Minute, 0.60, zap.NewNop())

	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	ctx := context.Background()
	_, ok := c.Resolve(ctx, "whatsapp")
	require.True(t, ok)

	// Directory goes away; the stale snapshot still answers.
	dir.err = errors.New("device offline")
	current = current.Add(2 * time.Minute)
	pkg, ok := c.Resolve(ctx, "firefox")
	require.True(t, ok)
	assert.Equal(t, "org.mozilla.firefox", pkg)
}
