package tool

import "github.com/zlnvch/whiteboard/models"

type Tool string

const (
	ToolPan    Tool = "pan"
	ToolSelect Tool = "select"
	ToolPen    Tool = "pen"
	ToolLaser  Tool = "laser"
	ToolRect   Tool = "rect"
	ToolCircle Tool = "circle"
	ToolArrow  Tool = "arrow"
	ToolText   Tool = "text"
)

func (t Tool) Valid() bool {
	switch t {
	case ToolPan, ToolSelect, ToolPen, ToolLaser, ToolRect, ToolCircle, ToolArrow, ToolText:
		return true
	}
	return false
}

type Mode int

const (
	ModeIdle Mode = iota
	ModePanning
	ModeDrawing
	ModeMovingElement
	ModeEditingText
)

func (m Mode) String() string {
	switch m {
	case ModePanning:
		return "panning"
	case ModeDrawing:
		return "drawing"
	case ModeMovingElement:
		return "moving"
	case ModeEditingText:
		return "editing_text"
	default:
		return "idle"
	}
}

// State is the interaction state. Only the fields relevant to Mode are set.
type State struct {
	Mode Mode

	// Pointer capture, held by Panning, Drawing and MovingElement.
	Captured    bool
	PointerId   int
	StartClient models.Point

	// Panning
	StartPan models.Viewport

	// Drawing and MovingElement
	ActiveId   string
	StartWorld models.Point

	// MovingElement
	InitialAnchor models.Point

	// EditingText
	TextAnchor models.Point
	DraftText  string
}

const (
	ButtonPrimary   = 0
	ButtonMiddle    = 1
	ButtonSecondary = 2
)

type PointerEvent struct {
	PointerId int          `json:"pointerId"`
	Button    int          `json:"button"`
	Client    models.Point `json:"client"`
}

type WheelEvent struct {
	Client models.Point `json:"client"`
	DeltaY float64      `json:"deltaY"`
}

type KeyEvent struct {
	Key string `json:"key"`
}

// Style is applied to newly created elements.
type Style struct {
	Color    string
	Width    float64
	FontSize float64
}

var DefaultStyle = Style{Color: "#111827", Width: 3, FontSize: 24}

const (
	LaserColor = "#ef4444"
	LaserWidth = 4.0

	StickerFontSize = 48.0
	StickerColor    = "#111827"
)
