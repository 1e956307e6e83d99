package tui

const (
	compactWidthBreakpoint = 100
	headerHeight           = 3
	footerHeight           = 4
)

type uiLayout struct {
	Width  int
	Height int

	Compact bool

	BodyHeight     int
	MainWidth      int
	InspectorWidth int
}

// computeLayout splits the body into the run table and the inspector. Narrow
// terminals stack the inspector under the table.
func computeLayout(width, height int) uiLayout {
	if width < 40 {
		width = 40
	}
	if height < 16 {
		height = 16
	}
	layout := uiLayout{
		Width:      width,
		Height:     height,
		BodyHeight: maxInt(6, height-headerHeight-footerHeight),
	}
	layout.Compact = width < compactWidthBreakpoint
	if layout.Compact {
		layout.MainWidth = width
		layout.InspectorWidth = width
		return layout
	}
	layout.InspectorWidth = clampInt(width*35/100, 36, 60)
	layout.MainWidth = maxInt(30, width-layout.InspectorWidth-1)
	return layout
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
