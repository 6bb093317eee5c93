// File: internal/executor/appcache.go
// Description: A refreshable snapshot of the device's launchable apps plus
// the fuzzy resolution ladder that maps free-form names ("whatsapp", "the
// calculator") onto package identifiers. The snapshot is replaced atomically
// under a RWMutex so readers always see a consistent, possibly stale, view;
// singleflight collapses concurrent refreshes into one directory call.
package executor

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/textutil"
)

// appAliases maps common spoken names to package ids checked before any
// fuzzy matching.
var appAliases = map[string]string{
	"chrome":     "com.android.chrome",
	"browser":    "com.android.chrome",
	"youtube":    "com.google.android.youtube",
	"gmail":      "com.google.android.gm",
	"email":      "com.google.android.gm",
	"maps":       "com.google.android.apps.maps",
	"photos":     "com.google.android.apps.photos",
	"camera":     "com.google.android.GoogleCamera",
	"phone":      "com.google.android.dialer",
	"dialer":     "com.google.android.dialer",
	"messages":   "com.google.android.apps.messaging",
	"sms":        "com.google.android.apps.messaging",
	"whatsapp":   "com.whatsapp",
	"instagram":  "com.instagram.android",
	"spotify":    "com.spotify.music",
	"play store": "com.android.vending",
	"settings":   "com.android.settings",
	"calendar":   "com.google.android.calendar",
	"clock":      "com.google.android.deskclock",
	"calculator": "com.google.android.calculator",
	"files":      "com.google.android.apps.nbu.files",
}

// AppCache is the time-bounded directory snapshot used for app resolution.
type AppCache struct {
	logger    *zap.Logger
	directory schemas.AppDirectory
	ttl       time.Duration
	fuzzyMin  float64

	mu        sync.RWMutex
	apps      []schemas.AppInfo
	byPackage map[string]schemas.AppInfo
	fetchedAt time.Time

	group singleflight.Group
	now   func() time.Time
}

// NewAppCache creates a cache over the given directory. ttl bounds snapshot
// age; fuzzyMin is the LCS-ratio floor for the last resolution rung.
func NewAppCache(directory schemas.AppDirectory, ttl time.Duration, fuzzyMin float64, logger *zap.Logger) *AppCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if fuzzyMin <= 0 {
		fuzzyMin = 0.60
	}
	return &AppCache{
		logger:    logger.Named("app_cache"),
		directory: directory,
		ttl:       ttl,
		fuzzyMin:  fuzzyMin,
		now:       time.Now,
	}
}

// snapshot returns the current app list, refreshing it when older than the
// TTL. A failed refresh falls back to the previous snapshot when one exists.
func (c *AppCache) snapshot(ctx context.Context) ([]schemas.AppInfo, map[string]schemas.AppInfo, error) {
	c.mu.RLock()
	fresh := c.apps != nil && c.now().Sub(c.fetchedAt) < c.ttl
	apps, byPkg := c.apps, c.byPackage
	c.mu.RUnlock()
	if fresh {
		return apps, byPkg, nil
	}

	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		listed, err := c.directory.ListLaunchable(ctx)
		if err != nil {
			return nil, err
		}
		byPackage := make(map[string]schemas.AppInfo, len(listed))
		for _, app := range listed {
			byPackage[app.Package] = app
		}
		c.mu.Lock()
		c.apps = listed
		c.byPackage = byPackage
		c.fetchedAt = c.now()
		c.mu.Unlock()
		c.logger.Debug("Refreshed app directory snapshot", zap.Int("apps", len(listed)))
		return nil, nil
	})

	c.mu.RLock()
	apps, byPkg = c.apps, c.byPackage
	c.mu.RUnlock()
	if apps == nil && err != nil {
		return nil, nil, err
	}
	return apps, byPkg, nil
}

// Resolve maps a free-form app name onto a package id. The ladder is fixed:
// exact label, label ignoring internal spaces, alias table, unique label
// substring, unique package substring, then the best LCS fuzzy match at or
// above the floor. An empty return means nothing resolved.
func (c *AppCache) Resolve(ctx context.Context, name string) (string, bool) {
	normalized := textutil.Normalize(name)
	if normalized == "" {
		return "", false
	}

	apps, byPackage, err := c.snapshot(ctx)
	if err != nil {
		c.logger.Warn("App directory unavailable", zap.Error(err))
		// The alias table still works without a directory snapshot.
		if pkg, ok := appAliases[normalized]; ok {
			return pkg, true
		}
		return "", false
	}

	// Exact label match.
	for _, app := range apps {
		if textutil.Normalize(app.Label) == normalized {
			return app.Package, true
		}
	}

	// Label match ignoring internal spaces ("whats app" vs "WhatsApp").
	squeezed := strings.ReplaceAll(normalized, " ", "")
	for _, app := range apps {
		if strings.ReplaceAll(textutil.Normalize(app.Label), " ", "") == squeezed {
			return app.Package, true
		}
	}

	// Alias table; aliases may point at packages not currently installed, so
	// verify against the snapshot before trusting one.
	if pkg, ok := appAliases[normalized]; ok {
		if _, installed := byPackage[pkg]; installed || len(apps) == 0 {
			return pkg, true
		}
	}

	// Unique label substring containment, either direction.
	if pkg, ok := uniqueMatch(apps, func(app schemas.AppInfo) bool {
		label := textutil.Normalize(app.Label)
		return strings.Contains(label, normalized) || strings.Contains(normalized, label)
	}); ok {
		return pkg, true
	}

	// Unique package-id substring.
	if pkg, ok := uniqueMatch(apps, func(app schemas.AppInfo) bool {
		return strings.Contains(strings.ToLower(app.Package), squeezed)
	}); ok {
		return pkg, true
	}

	// Last rung: best longest-common-subsequence ratio above the floor.
	bestScore := 0.0
	bestPkg := ""
	for _, app := range apps {
		if score := textutil.LCSRatio(normalized, textutil.Normalize(app.Label)); score > bestScore {
			bestScore = score
			bestPkg = app.Package
		}
	}
	if bestScore >= c.fuzzyMin {
		c.logger.Debug("Fuzzy app resolution",
			zap.String("name", name),
			zap.String("package", bestPkg),
			zap.Float64("score", bestScore))
		return bestPkg, true
	}

	return "", false
}

// uniqueMatch returns the package id only when exactly one app satisfies the
// predicate; ambiguous containment is treated as no match.
func uniqueMatch(apps []schemas.AppInfo, pred func(schemas.AppInfo) bool) (string, bool) {
	found := ""
	count := 0
	for _, app := range apps {
		if pred(app) {
			found = app.Package
			count++
			if count > 1 {
				return "", false
			}
		}
	}
	return found, count == 1
}
