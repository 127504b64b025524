package view

// NarrowWidth is the widest viewport treated as narrow.
const NarrowWidth = 900

type Mode string

const (
	ModeList Mode = "list"
	ModeMap  Mode = "map"
	ModeBoth Mode = "both"
)

func IsNarrow(width int) bool {
	return width <= NarrowWidth
}

// Layout tracks which panes are shown for the current viewport width.
type Layout struct {
	mode  Mode
	width int
}

func NewLayout(width int) *Layout {
	l := &Layout{width: width, mode: ModeBoth}
	if IsNarrow(width) {
		l.mode = ModeList
	}
	return l
}

func (l *Layout) Mode() Mode {
	return l.mode
}

func (l *Layout) Width() int {
	return l.width
}

func (l *Layout) ShowMap() {
	l.mode = ModeMap
}

func (l *Layout) ShowList() {
	l.mode = ModeList
}

func (l *Layout) ShowBoth() {
	l.mode = ModeBoth
}

// Resize only changes the mode when the width crosses NarrowWidth.
func (l *Layout) Resize(width int) {
	wasNarrow := IsNarrow(l.width)
	l.width = width

	switch nowNarrow := IsNarrow(width); {
	case wasNarrow && !nowNarrow:
		l.mode = ModeBoth
	case !wasNarrow && nowNarrow && l.mode == ModeBoth:
		l.mode = ModeMap
	}
}

// Set applies a named mode. Unknown names are ignored and reported false.
func (l *Layout) Set(mode Mode) bool {
	switch mode {
	case ModeList:
		l.ShowList()
	case ModeMap:
		l.ShowMap()
	case ModeBoth:
		l.ShowBoth()
	default:
		return false
	}
	return true
}
