package prefs

// WidgetType is the serialized discriminator of a widget placement.
type WidgetType string

const (
	WidgetApp    WidgetType = "widget:app"
	WidgetClock  WidgetType = "widget:clock"
	WidgetBroken WidgetType = "widget:broken"
)

// WidgetPosition is a rectangle on the widget grid, in cells.
type WidgetPosition struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Widget is one widget placed on a panel. App widgets remember their
// provider so they can be restored after the host forgets them.
type Widget struct {
	Type             WidgetType     `json:"type" yaml:"type"`
	ID               int            `json:"id" yaml:"id"`
	Position         WidgetPosition `json:"position" yaml:"position"`
	PanelID          int            `json:"panelId" yaml:"panelId"`
	AllowInteraction bool           `json:"allowInteraction" yaml:"allowInteraction"`
	Package          string         `json:"package,omitempty" yaml:"package,omitempty"`
	Class            string         `json:"class,omitempty" yaml:"class,omitempty"`
	User             int            `json:"user,omitempty" yaml:"user,omitempty"`
}

func (w Widget) valid() bool {
	switch w.Type {
	case WidgetApp, WidgetBroken:
		return w.Package != "" && w.Class != ""
	case WidgetClock:
		return true
	}
	return false
}

// Provider returns the app that supplies an app widget.
func (w Widget) Provider() (AppRef, bool) {
	if w.Type != WidgetApp && w.Type != WidgetBroken {
		return AppRef{}, false
	}
	return AppRef{Kind: RefApp, Package: w.Package, Activity: w.Class, User: w.User}, true
}

// WidgetPanel is a named page that widgets are placed on.
type WidgetPanel struct {
	ID    int    `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// HomePanel always exists and is never stored in the custom panel set.
var HomePanel = WidgetPanel{ID: 0, Label: "home"}
