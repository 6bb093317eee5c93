// File: internal/executor/executor.go
// Description: Translates planned actions into automation backend calls. One
// structured ActionResult per action, always: backend absence, lookup misses,
// timeouts and even backend panics all come back as typed failures, never as
// raw errors or crashes.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/config"
)

// Failure message prefixes; stable enough for callers to log and group on.
const (
	msgBackendUnavailable = "automation backend unavailable"
	msgEmptySelector      = "selector has no fields set; refusing to match"
	msgElementNotFound    = "no element matched the selector"
	msgAppUnresolved      = "could not resolve app"
	msgWaitTimeout        = "condition not met within timeout"
)

// storePackages is the fixed preference order for "open the app store" style
// requests.
var storePackages = []string{
	"com.android.vending",
	"org.fdroid.fdroid",
	"com.amazon.venezia",
}

var rePackageID = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*(\.[a-zA-Z][a-zA-Z0-9_]*)+$`)

// Executor runs single actions against an automation backend. The backend is
// injected and may be nil, which is a normal, typed state: every action then
// fails cleanly as non-recoverable.
type Executor struct {
	logger  *zap.Logger
	cfg     config.ExecutorConfig
	backend schemas.AutomationBackend
	apps    *AppCache
}

// New creates an Executor. backend may be nil when automation has not been
// granted yet; apps may be nil only if no LaunchApp action will ever run.
func New(cfg config.ExecutorConfig, backend schemas.AutomationBackend, apps *AppCache, logger *zap.Logger) *Executor {
	if cfg.DefaultActionTimeout <= 0 {
		cfg.DefaultActionTimeout = 10 * time.Second
	}
	if cfg.ClickRetryDelay <= 0 {
		cfg.ClickRetryDelay = 500 * time.Millisecond
	}
	if cfg.InputFocusDelay <= 0 {
		cfg.InputFocusDelay = 300 * time.Millisecond
	}
	if cfg.WaitPollInterval <= 0 {
		cfg.WaitPollInterval = 500 * time.Millisecond
	}
	if cfg.SwipeDuration <= 0 {
		cfg.SwipeDuration = 300 * time.Millisecond
	}
	return &Executor{
		logger:  logger.Named("executor"),
		cfg:     cfg,
		backend: backend,
		apps:    apps,
	}
}

// Execute runs one action end to end and reports a timed result. A panicking
// backend is converted into a non-recoverable failure carrying the panic
// message.
func (e *Executor) Execute(ctx context.Context, action schemas.Action) (result schemas.ActionResult) {
	start := time.Now()
	meta := action.Meta()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Backend panicked during action",
				zap.String("action_id", meta.ID), zap.Any("panic", r))
			result = schemas.NewFailureResult(meta.ID, time.Since(start), fmt.Sprintf("backend panic: %v", r), false)
		}
	}()

	if e.backend == nil {
		return schemas.NewFailureResult(meta.ID, time.Since(start), msgBackendUnavailable, false)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.DefaultActionTimeout)
	defer cancel()

	var (
		message     string
		recoverable bool
		err         error
	)
	switch a := action.(type) {
	case schemas.LaunchApp:
		message, recoverable, err = e.launchApp(ctx, a)
	case schemas.Click:
		message, recoverable, err = e.click(ctx, a)
	case schemas.InputText:
		message, recoverable, err = e.inputText(ctx, a)
	case schemas.Scroll:
		message, recoverable, err = e.scroll(ctx, a)
	case schemas.Wait:
		message, recoverable, err = e.wait(ctx, a)
	case schemas.Back:
		err = e.backend.PerformGlobalAction(ctx, schemas.GlobalBack)
		message = "pressed back"
	case schemas.Home:
		err = e.backend.PerformGlobalAction(ctx, schemas.GlobalHome)
		message = "went to home screen"
	default:
		return schemas.NewFailureResult(meta.ID, time.Since(start), fmt.Sprintf("unknown action variant %T", action), false)
	}

	elapsed := time.Since(start)
	if err != nil {
		e.logger.Warn("Action failed",
			zap.String("action_id", meta.ID),
			zap.String("description", meta.Description),
			zap.Bool("recoverable", recoverable),
			zap.Error(err))
		return schemas.NewFailureResult(meta.ID, elapsed, err.Error(), recoverable)
	}

	e.logger.Debug("Action succeeded",
		zap.String("action_id", meta.ID),
		zap.Duration("duration", elapsed))
	return schemas.NewSuccessResult(meta.ID, elapsed, message)
}

// -- LaunchApp --

// launchApp resolves the target through a fixed ladder: literal store URIs,
// literal web URLs, store-request heuristics, direct package ids, then the
// fuzzy app cache. Resolution failure is final (recoverable=false) but never
// an exception.
func (e *Executor) launchApp(ctx context.Context, a schemas.LaunchApp) (string, bool, error) {
	target := strings.TrimSpace(a.Target)
	lower := strings.ToLower(target)

	switch {
	case strings.HasPrefix(lower, "market://") || strings.HasPrefix(lower, "https://play.google.com/"):
		if err := e.backend.OpenURI(ctx, target); err != nil {
			return "", false, fmt.Errorf("failed to open store listing: %w", err)
		}
		return fmt.Sprintf("opened store listing %s", target), false, nil

	case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
		if err := e.backend.OpenURI(ctx, target); err != nil {
			return "", false, fmt.Errorf("failed to open url: %w", err)
		}
		return fmt.Sprintf("opened %s", target), false, nil

	case isStoreRequest(lower):
		for _, pkg := range storePackages {
			if err := e.backend.LaunchApp(ctx, pkg); err == nil {
				return fmt.Sprintf("launched %s", pkg), false, nil
			}
		}
		return "", false, fmt.Errorf("%s: no app store could be launched", msgAppUnresolved)

	case rePackageID.MatchString(target):
		if err := e.backend.LaunchApp(ctx, target); err == nil {
			return fmt.Sprintf("launched %s", target), false, nil
		}
		// Fall through to fuzzy resolution; the dotted string may still be a
		// label of sorts.
		fallthrough

	default:
		if e.apps != nil {
			if pkg, ok := e.apps.Resolve(ctx, target); ok {
				if err := e.backend.LaunchApp(ctx, pkg); err != nil {
					return "", false, fmt.Errorf("failed to launch %s: %w", pkg, err)
				}
				return fmt.Sprintf("launched %s", pkg), false, nil
			}
		}
		return "", false, fmt.Errorf("%s %q", msgAppUnresolved, target)
	}
}

func isStoreRequest(lower string) bool {
	return strings.Contains(lower, "play store") ||
		strings.Contains(lower, "app store") ||
		lower == "store"
}

// -- Click --

// click resolves the selector with one short retry, then activates the node:
// directly when clickable, via the nearest clickable ancestor otherwise, and
// as a last resort with a synthetic tap at the node's center.
func (e *Executor) click(ctx context.Context, a schemas.Click) (string, bool, error) {
	if a.Selector.IsEmpty() {
		return "", false, fmt.Errorf("%s", msgEmptySelector)
	}

	node, err := e.backend.FindNode(ctx, a.Selector)
	if err != nil {
		return "", false, fmt.Errorf("element lookup failed: %w", err)
	}
	if node == nil {
		// One short grace period; the UI may still be settling.
		if err := sleepCtx(ctx, e.cfg.ClickRetryDelay); err != nil {
			return "", true, fmt.Errorf("%s (interrupted while retrying)", msgElementNotFound)
		}
		node, err = e.backend.FindNode(ctx, a.Selector)
		if err != nil {
			return "", false, fmt.Errorf("element lookup failed: %w", err)
		}
		if node == nil {
			return "", true, fmt.Errorf("%s", msgElementNotFound)
		}
	}

	if node.Clickable() {
		if err := e.backend.ClickNode(ctx, node); err != nil {
			return "", false, fmt.Errorf("click failed: %w", err)
		}
		return "clicked element", false, nil
	}

	for ancestor := node.Parent(); ancestor != nil; ancestor = ancestor.Parent() {
		if ancestor.Clickable() {
			if err := e.backend.ClickNode(ctx, ancestor); err != nil {
				return "", false, fmt.Errorf("click on ancestor failed: %w", err)
			}
			return "clicked nearest clickable ancestor", false, nil
		}
	}

	bounds := node.Bounds()
	if err := e.backend.ClickAt(ctx, bounds.CenterX(), bounds.CenterY()); err != nil {
		return "", false, fmt.Errorf("coordinate tap failed: %w", err)
	}
	return "tapped element center", false, nil
}

// -- InputText --

// inputText resolves the field, focuses it with a click, pauses briefly and
// submits the payload. Any stage failing aborts the whole action.
func (e *Executor) inputText(ctx context.Context, a schemas.InputText) (string, bool, error) {
	if a.Selector.IsEmpty() {
		return "", false, fmt.Errorf("%s", msgEmptySelector)
	}

	node, err := e.backend.FindNode(ctx, a.Selector)
	if err != nil {
		return "", false, fmt.Errorf("element lookup failed: %w", err)
	}
	if node == nil {
		return "", true, fmt.Errorf("%s", msgElementNotFound)
	}

	if err := e.backend.ClickNode(ctx, node); err != nil {
		return "", false, fmt.Errorf("failed to focus input field: %w", err)
	}
	if err := sleepCtx(ctx, e.cfg.InputFocusDelay); err != nil {
		return "", false, fmt.Errorf("interrupted before typing: %w", err)
	}
	if err := e.backend.InputText(ctx, node, a.Text); err != nil {
		return "", false, fmt.Errorf("failed to type text: %w", err)
	}
	return "entered text", false, nil
}

// -- Scroll --

// scroll issues a straight-line swipe between two points derived from the
// direction and a fractional amount of the screen extent.
func (e *Executor) scroll(ctx context.Context, a schemas.Scroll) (string, bool, error) {
	width, height, err := e.backend.ScreenSize(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to read screen size: %w", err)
	}

	amount := a.Amount
	if amount <= 0 || amount > 1 {
		amount = 0.5
	}

	cx, cy := width/2, height/2
	spanX := int(float64(width) * amount / 2)
	spanY := int(float64(height) * amount / 2)

	// Endpoints must stay clear of the screen edges; touches there land in
	// the system gesture zones instead of the scrollable content.
	if limit := width/2 - width/10; spanX > limit {
		spanX = limit
	}
	if limit := height/2 - height/10; spanY > limit {
		spanY = limit
	}

	var fromX, fromY, toX, toY int
	switch a.Direction {
	case schemas.ScrollDown:
		// Scrolling down moves content up: swipe from low to high.
		fromX, fromY, toX, toY = cx, cy+spanY, cx, cy-spanY
	case schemas.ScrollUp:
		fromX, fromY, toX, toY = cx, cy-spanY, cx, cy+spanY
	case schemas.ScrollLeft:
		fromX, fromY, toX, toY = cx-spanX, cy, cx+spanX, cy
	case schemas.ScrollRight:
		fromX, fromY, toX, toY = cx+spanX, cy, cx-spanX, cy
	default:
		return "", false, fmt.Errorf("unknown scroll direction %q", a.Direction)
	}

	if err := e.backend.Swipe(ctx, fromX, fromY, toX, toY, int(e.cfg.SwipeDuration.Milliseconds())); err != nil {
		return "", false, fmt.Errorf("swipe failed: %w", err)
	}
	return fmt.Sprintf("scrolled %s", strings.ToLower(string(a.Direction))), false, nil
}

// -- Wait --

// wait either sleeps for the timeout or polls for an element's presence or
// absence to flip to the desired state.
func (e *Executor) wait(ctx context.Context, a schemas.Wait) (string, bool, error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	if a.Condition.Kind == schemas.WaitDelay {
		if err := sleepCtx(ctx, timeout); err != nil {
			return "", true, fmt.Errorf("wait interrupted: %w", err)
		}
		return fmt.Sprintf("waited %s", timeout), false, nil
	}

	if a.Condition.Selector.IsEmpty() {
		return "", false, fmt.Errorf("%s", msgEmptySelector)
	}

	deadline := time.Now().Add(timeout)
	for {
		node, err := e.backend.FindNode(ctx, a.Condition.Selector)
		if err != nil {
			return "", false, fmt.Errorf("element lookup failed: %w", err)
		}
		present := node != nil
		if (a.Condition.Kind == schemas.WaitPresent && present) ||
			(a.Condition.Kind == schemas.WaitAbsent && !present) {
			return "condition met", false, nil
		}
		if time.Now().After(deadline) {
			return "", true, fmt.Errorf("%s (%s)", msgWaitTimeout, timeout)
		}
		if err := sleepCtx(ctx, e.cfg.WaitPollInterval); err != nil {
			return "", true, fmt.Errorf("%s (interrupted)", msgWaitTimeout)
		}
	}
}

// sleepCtx sleeps for d or until the context is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
