package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind string

const (
	KindPath   Kind = "path"
	KindRect   Kind = "rect"
	KindCircle Kind = "circle"
	KindArrow  Kind = "arrow"
	KindText   Kind = "text"
	KindImage  Kind = "image"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Element is one drawable unit on a board. The set of implementations is
// closed: Path, Rect, Circle, Arrow, Text and Image.
type Element interface {
	Meta() ElementMeta
	Kind() Kind
	Clone() Element
	isElement()
}

type ElementMeta struct {
	Id        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
}

func (m ElementMeta) Meta() ElementMeta { return m }

type Path struct {
	ElementMeta
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	Width     float64 `json:"width"`
	Ephemeral bool    `json:"ephemeral,omitempty"`
}

type Rect struct {
	ElementMeta
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type Circle struct {
	ElementMeta
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	R     float64 `json:"r"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type Arrow struct {
	ElementMeta
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type Text struct {
	ElementMeta
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Content  string  `json:"text"`
	FontSize float64 `json:"fontSize"`
	Color    string  `json:"color"`
}

// Image URL is either transient (blob:, data:) while in memory or an
// absolute http(s) URL once normalized.
type Image struct {
	ElementMeta
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	W   float64 `json:"w"`
	H   float64 `json:"h"`
	URL string  `json:"url"`
}

func (*Path) Kind() Kind   { return KindPath }
func (*Rect) Kind() Kind   { return KindRect }
func (*Circle) Kind() Kind { return KindCircle }
func (*Arrow) Kind() Kind  { return KindArrow }
func (*Text) Kind() Kind   { return KindText }
func (*Image) Kind() Kind  { return KindImage }

func (*Path) isElement()   {}
func (*Rect) isElement()   {}
func (*Circle) isElement() {}
func (*Arrow) isElement()  {}
func (*Text) isElement()   {}
func (*Image) isElement()  {}

func (p *Path) Clone() Element {
	c := *p
	c.Points = append([]Point(nil), p.Points...)
	return &c
}

func (r *Rect) Clone() Element {
	c := *r
	return &c
}

func (c *Circle) Clone() Element {
	d := *c
	return &d
}

func (a *Arrow) Clone() Element {
	c := *a
	return &c
}

func (t *Text) Clone() Element {
	c := *t
	return &c
}

func (i *Image) Clone() Element {
	c := *i
	return &c
}

// Every element is encoded with its kind inline: {"kind":"rect","id":...}

func (p *Path) MarshalJSON() ([]byte, error) {
	type alias Path
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindPath, (*alias)(p)})
}

func (r *Rect) MarshalJSON() ([]byte, error) {
	type alias Rect
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindRect, (*alias)(r)})
}

func (c *Circle) MarshalJSON() ([]byte, error) {
	type alias Circle
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindCircle, (*alias)(c)})
}

func (a *Arrow) MarshalJSON() ([]byte, error) {
	type alias Arrow
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindArrow, (*alias)(a)})
}

func (t *Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindText, (*alias)(t)})
}

func (i *Image) MarshalJSON() ([]byte, error) {
	type alias Image
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindImage, (*alias)(i)})
}

// Elements is the ordered element sequence of a board. Order is z-order:
// the last element is drawn on top.
type Elements []Element

func (es *Elements) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Elements, 0, len(raw))
	for _, r := range raw {
		el, err := decodeElement(r)
		if err != nil {
			return err
		}
		out = append(out, el)
	}
	*es = out
	return nil
}

var ErrUnknownKind = errors.New("unknown element kind")

func decodeElement(data []byte) (Element, error) {
	var envelope struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	var el Element
	switch envelope.Kind {
	case KindPath:
		el = &Path{}
	case KindRect:
		el = &Rect{}
	case KindCircle:
		el = &Circle{}
	case KindArrow:
		el = &Arrow{}
	case KindText:
		el = &Text{}
	case KindImage:
		el = &Image{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, envelope.Kind)
	}

	if err := json.Unmarshal(data, el); err != nil {
		return nil, fmt.Errorf("decode %s element: %w", envelope.Kind, err)
	}
	return el, nil
}

// IsEphemeral reports whether el is a laser stroke.
func IsEphemeral(el Element) bool {
	p, ok := el.(*Path)
	return ok && p.Ephemeral
}

// Persistable returns deep copies of all non-ephemeral elements, in order.
func (es Elements) Persistable() Elements {
	out := make(Elements, 0, len(es))
	for _, el := range es {
		if IsEphemeral(el) {
			continue
		}
		out = append(out, el.Clone())
	}
	return out
}

func (es Elements) Clone() Elements {
	out := make(Elements, len(es))
	for i, el := range es {
		out[i] = el.Clone()
	}
	return out
}
