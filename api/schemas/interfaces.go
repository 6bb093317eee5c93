// File: api/schemas/interfaces.go
// Description: Contracts to the external collaborators the pipeline consumes
// as black boxes: the language understanding service, the on-device UI
// automation backend and the launchable-app directory. Defining them here
// breaks import cycles and lets every consumer be tested against mocks.
package schemas

import "context"

// LLMClient is the language understanding contract. Failures and timeouts
// must be caught by callers and downgraded (to an Unclear classification or a
// Failed response); they are never propagated raw past a pipeline stage.
type LLMClient interface {
	// Generate produces free text for the given prompt, bounded by maxTokens.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	// Embed returns a fixed-length vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Rect is a node's bounding box in screen coordinates.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// CenterX returns the horizontal midpoint of the rectangle.
func (r Rect) CenterX() int { return (r.Left + r.Right) / 2 }

// CenterY returns the vertical midpoint of the rectangle.
func (r Rect) CenterY() int { return (r.Top + r.Bottom) / 2 }

// UINode is one element of the on-screen accessibility tree.
type UINode interface {
	Text() string
	Desc() string
	ID() string
	ClassName() string
	Clickable() bool
	Bounds() Rect
	// Parent returns the enclosing node, or nil at the root. The executor
	// walks this chain to find the nearest clickable ancestor.
	Parent() UINode
}

// GlobalAction is a backend-level navigation primitive.
type GlobalAction string

const (
	GlobalBack          GlobalAction = "BACK"
	GlobalHome          GlobalAction = "HOME"
	GlobalRecents       GlobalAction = "RECENTS"
	GlobalNotifications GlobalAction = "NOTIFICATIONS"
)

// AutomationBackend is the abstract capability that locates on-screen
// elements and performs gestures on the host device. The backend may be
// absent (permission not yet granted); the executor detects that and
// degrades every backend-dependent action to a clean failure.
type AutomationBackend interface {
	// FindNode returns the first node matching the selector, or (nil, nil)
	// when nothing matches. An error indicates the lookup itself failed.
	FindNode(ctx context.Context, sel Selector) (UINode, error)
	FindAllNodes(ctx context.Context, sel Selector) ([]UINode, error)
	ClickNode(ctx context.Context, node UINode) error
	ClickAt(ctx context.Context, x, y int) error
	InputText(ctx context.Context, node UINode, text string) error
	// Swipe issues a straight-line gesture between two screen points.
	Swipe(ctx context.Context, fromX, fromY, toX, toY int, durationMillis int) error
	PerformGlobalAction(ctx context.Context, action GlobalAction) error
	LaunchApp(ctx context.Context, packageID string) error
	OpenURI(ctx context.Context, uri string) error
	ScreenSize(ctx context.Context) (width, height int, err error)
	// DumpTree renders the current accessibility tree for diagnostics only.
	DumpTree(ctx context.Context) (string, error)
}

// AppInfo is one launchable application as reported by the app directory.
type AppInfo struct {
	Label   string `json:"label"`
	Package string `json:"package"`
}

// AppDirectory enumerates launchable applications. Consumed only by the
// executor's resolution cache.
type AppDirectory interface {
	ListLaunchable(ctx context.Context) ([]AppInfo, error)
}
