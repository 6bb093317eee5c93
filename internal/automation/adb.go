// File: internal/automation/adb.go
// Description: AutomationBackend and AppDirectory implementations that drive a
// device over adb. Every gesture and query is a shell command; the runner is
// injectable so tests exercise the full command construction and output
// parsing without a device.
package automation

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/config"
)

const dumpPath = "/sdcard/window_dump.xml"

// runFunc executes one adb invocation and returns its combined output.
type runFunc func(ctx context.Context, args ...string) (string, error)

// ADBBackend implements schemas.AutomationBackend and schemas.AppDirectory on
// top of the adb command-line tool.
type ADBBackend struct {
	logger *zap.Logger
	cfg    config.AutomationConfig
	run    runFunc
}

// NewADBBackend builds a backend bound to the configured adb binary and
// device serial. It does not probe the device; the first action does.
func NewADBBackend(cfg config.AutomationConfig, logger *zap.Logger) *ADBBackend {
	if cfg.ADBPath == "" {
		cfg.ADBPath = "adb"
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	b := &ADBBackend{
		logger: logger.Named("adb"),
		cfg:    cfg,
	}
	b.run = b.runCommand
	return b
}

func (b *ADBBackend) runCommand(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
	defer cancel()

	full := args
	if b.cfg.DeviceSerial != "" {
		full = append([]string{"-s", b.cfg.DeviceSerial}, args...)
	}
	out, err := exec.CommandContext(ctx, b.cfg.ADBPath, full...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("adb %s: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// DumpTree captures the current accessibility tree as raw XML.
func (b *ADBBackend) DumpTree(ctx context.Context) (string, error) {
	if _, err := b.run(ctx, "shell", "uiautomator", "dump", dumpPath); err != nil {
		return "", err
	}
	out, err := b.run(ctx, "shell", "cat", dumpPath)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (b *ADBBackend) findAll(ctx context.Context, sel schemas.Selector) ([]*uiNode, error) {
	if sel.IsEmpty() {
		return nil, nil
	}
	xml, err := b.DumpTree(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := parseTree(xml)
	if err != nil {
		return nil, err
	}
	var matched []*uiNode
	for _, n := range nodes {
		if matchSelector(n, sel) {
			matched = append(matched, n)
		}
	}
	return matched, nil
}

// FindNode returns the first matching node in document order, or (nil, nil)
// when nothing matches.
func (b *ADBBackend) FindNode(ctx context.Context, sel schemas.Selector) (schemas.UINode, error) {
	matched, err := b.findAll(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, nil
	}
	return matched[0], nil
}

func (b *ADBBackend) FindAllNodes(ctx context.Context, sel schemas.Selector) ([]schemas.UINode, error) {
	matched, err := b.findAll(ctx, sel)
	if err != nil {
		return nil, err
	}
	nodes := make([]schemas.UINode, len(matched))
	for i, n := range matched {
		nodes[i] = n
	}
	return nodes, nil
}

// ClickNode taps the center of the node's bounds; adb has no node-level
// activation primitive.
func (b *ADBBackend) ClickNode(ctx context.Context, node schemas.UINode) error {
	bounds := node.Bounds()
	return b.ClickAt(ctx, bounds.CenterX(), bounds.CenterY())
}

func (b *ADBBackend) ClickAt(ctx context.Context, x, y int) error {
	_, err := b.run(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// InputText taps the node to focus it and types the text. adb's input text
// requires spaces encoded as %s and offers no quoting, so shell-sensitive
// characters are stripped.
func (b *ADBBackend) InputText(ctx context.Context, node schemas.UINode, text string) error {
	if err := b.ClickNode(ctx, node); err != nil {
		return err
	}
	_, err := b.run(ctx, "shell", "input", "text", encodeInputText(text))
	return err
}

func (b *ADBBackend) Swipe(ctx context.Context, fromX, fromY, toX, toY int, durationMillis int) error {
	_, err := b.run(ctx, "shell", "input", "swipe",
		strconv.Itoa(fromX), strconv.Itoa(fromY),
		strconv.Itoa(toX), strconv.Itoa(toY),
		strconv.Itoa(durationMillis))
	return err
}

func (b *ADBBackend) PerformGlobalAction(ctx context.Context, action schemas.GlobalAction) error {
	switch action {
	case schemas.GlobalBack:
		_, err := b.run(ctx, "shell", "input", "keyevent", "KEYCODE_BACK")
		return err
	case schemas.GlobalHome:
		_, err := b.run(ctx, "shell", "input", "keyevent", "KEYCODE_HOME")
		return err
	case schemas.GlobalRecents:
		_, err := b.run(ctx, "shell", "input", "keyevent", "KEYCODE_APP_SWITCH")
		return err
	case schemas.GlobalNotifications:
		_, err := b.run(ctx, "shell", "cmd", "statusbar", "expand-notifications")
		return err
	default:
		return fmt.Errorf("unknown global action %q", action)
	}
}

// LaunchApp starts the package's launcher activity via monkey, which does not
// need the activity name.
func (b *ADBBackend) LaunchApp(ctx context.Context, packageID string) error {
	out, err := b.run(ctx, "shell", "monkey", "-p", packageID,
		"-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return err
	}
	// monkey exits zero even when the package does not exist.
	if strings.Contains(out, "No activities found") || strings.Contains(out, "aborted") {
		return fmt.Errorf("no launchable activity for %s", packageID)
	}
	return nil
}

func (b *ADBBackend) OpenURI(ctx context.Context, uri string) error {
	_, err := b.run(ctx, "shell", "am", "start", "-a", "android.intent.action.VIEW", "-d", uri)
	return err
}

var reScreenSize = regexp.MustCompile(`(\d+)x(\d+)`)

// ScreenSize reads the device resolution from wm size, preferring the
// override line when a resize is active.
func (b *ADBBackend) ScreenSize(ctx context.Context) (int, int, error) {
	out, err := b.run(ctx, "shell", "wm", "size")
	if err != nil {
		return 0, 0, err
	}
	var width, height int
	for _, line := range strings.Split(out, "\n") {
		m := reScreenSize.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		width, _ = strconv.Atoi(m[1])
		height, _ = strconv.Atoi(m[2])
		if strings.Contains(line, "Override") {
			break
		}
	}
	if width == 0 || height == 0 {
		return 0, 0, fmt.Errorf("could not parse screen size from %q", strings.TrimSpace(out))
	}
	return width, height, nil
}

// ListLaunchable enumerates packages that expose a launcher activity. adb has
// no cheap way to read display labels, so labels are derived from the last
// package segment.
func (b *ADBBackend) ListLaunchable(ctx context.Context) ([]schemas.AppInfo, error) {
	out, err := b.run(ctx, "shell", "cmd", "package", "query-activities",
		"--brief", "-a", "android.intent.action.MAIN", "-c", "android.intent.category.LAUNCHER")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var apps []schemas.AppInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, "/")
		if idx <= 0 || strings.ContainsAny(line[:idx], " :") {
			continue
		}
		pkg := line[:idx]
		if seen[pkg] {
			continue
		}
		seen[pkg] = true
		apps = append(apps, schemas.AppInfo{Label: labelFromPackage(pkg), Package: pkg})
	}
	b.logger.Debug("Enumerated launchable apps", zap.Int("count", len(apps)))
	return apps, nil
}

// labelFromPackage guesses a display label from a package id:
// "com.google.android.apps.maps" becomes "Maps".
func labelFromPackage(pkg string) string {
	segments := strings.Split(pkg, ".")
	last := segments[len(segments)-1]
	if last == "" {
		return pkg
	}
	return strings.ToUpper(last[:1]) + last[1:]
}

var reInputUnsafe = regexp.MustCompile("[\"'`\\\\$&|;<>(){}\\[\\]*?!#~\n\t]")

// encodeInputText prepares text for adb's input text command.
func encodeInputText(text string) string {
	text = reInputUnsafe.ReplaceAllString(text, "")
	return strings.ReplaceAll(text, " ", "%s")
}
