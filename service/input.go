package service

import (
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/tool"
)

type InputType string

const (
	InputPointerDown   InputType = "pointer_down"
	InputPointerMove   InputType = "pointer_move"
	InputPointerUp     InputType = "pointer_up"
	InputPointerCancel InputType = "pointer_cancel"
	InputWheel         InputType = "wheel"
	InputKey           InputType = "key"
	InputSetTool       InputType = "set_tool"
	InputSetStyle      InputType = "set_style"
	InputResize        InputType = "resize"
	InputUpdateText    InputType = "update_text"
	InputCommitText    InputType = "commit_text"
	InputCancelText    InputType = "cancel_text"
	InputDropSticker   InputType = "drop_sticker"
	InputInsertImage   InputType = "insert_image"
	InputRename        InputType = "rename"
	InputDialog        InputType = "dialog"
	InputExit          InputType = "exit"
)

// Input is one event for a session. Only the field matching Type is set.
type Input struct {
	Type    InputType
	Pointer tool.PointerEvent
	Wheel   tool.WheelEvent
	Key     tool.KeyEvent
	Tool    tool.Tool
	Style   tool.Style
	Resize  Resize
	Text    string
	Sticker Sticker
	Image   ImageInsert
	Dialog  bool
	Exit    ExitRequest
}

// Resize describes the client's canvas: its position and CSS size in client
// space and its device pixel ratio.
type Resize struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	DPR    float64 `json:"dpr"`
}

type Sticker struct {
	Client  models.Point `json:"client"`
	Content string       `json:"content"`
}

type ImageInsert struct {
	URL string  `json:"url"`
	W   float64 `json:"w"`
	H   float64 `json:"h"`
}

type ExitRequest struct {
	Mode models.ExitMode `json:"mode"`
	Name string          `json:"name"`
}
