// viewport.go provides a reusable scrollable viewport component with
// vertical scrolling, pagination and ANSI-aware line wrapping.
//
// Chat replies arrive pre-styled (glamour, lipgloss), so wrapping must
// never split an escape sequence.
package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Viewport is a scrollable text area with pagination.
type Viewport struct {
	width   int
	height  int
	content []string // lines as given
	wrapped []string // content wrapped to width
	scrollY int      // vertical scroll offset into wrapped
}

// NewViewport creates a viewport with the given dimensions.
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:  width,
		height: height,
	}
}

// SetContent replaces the viewport content.
func (v *Viewport) SetContent(content string) {
	if content == "" {
		v.SetContentLines(nil)
		return
	}
	v.SetContentLines(strings.Split(content, "\n"))
}

// SetContentLines replaces the viewport content with pre-split lines.
func (v *Viewport) SetContentLines(lines []string) {
	v.content = lines
	v.rewrap()
}

// SetSize updates viewport dimensions.
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.rewrap()
}

// ScrollUp moves the viewport up by n lines.
func (v *Viewport) ScrollUp(n int) {
	v.scrollY -= n
	v.clampScroll()
}

// ScrollDown moves the viewport down by n lines.
func (v *Viewport) ScrollDown(n int) {
	v.scrollY += n
	v.clampScroll()
}

// PageUp scrolls up by one page.
func (v *Viewport) PageUp() {
	v.ScrollUp(v.rows())
}

// PageDown scrolls down by one page.
func (v *Viewport) PageDown() {
	v.ScrollDown(v.rows())
}

// Home scrolls to the top.
func (v *Viewport) Home() {
	v.scrollY = 0
}

// End scrolls to the bottom.
func (v *Viewport) End() {
	v.scrollY = v.maxScrollY()
}

// AtBottom reports whether the last line is visible.
func (v *Viewport) AtBottom() bool {
	return v.scrollY >= v.maxScrollY()
}

// LineCount is the number of wrapped lines.
func (v *Viewport) LineCount() int {
	return len(v.wrapped)
}

// Render returns the visible portion of the content. The result is never
// taller than the viewport; the scroll indicator takes the last row.
func (v *Viewport) Render() string {
	if len(v.wrapped) == 0 {
		return ""
	}

	rows := v.rows()
	end := v.scrollY + rows
	if end > len(v.wrapped) {
		end = len(v.wrapped)
	}
	visible := append([]string(nil), v.wrapped[v.scrollY:end]...)

	// Pad to fill viewport height
	for len(visible) < rows {
		visible = append(visible, "")
	}

	if indicator := v.scrollIndicator(); indicator != "" {
		visible = append(visible, indicator)
	}
	return strings.Join(visible, "\n")
}

// rows is the number of content lines shown, one less than the height
// while the scroll indicator is visible.
func (v *Viewport) rows() int {
	if len(v.wrapped) > v.height && v.height > 1 {
		return v.height - 1
	}
	return v.height
}

func (v *Viewport) rewrap() {
	v.wrapped = v.wrapped[:0]
	for _, line := range v.content {
		if v.width <= 0 || ansi.StringWidth(line) <= v.width {
			v.wrapped = append(v.wrapped, line)
			continue
		}
		v.wrapped = append(v.wrapped, strings.Split(ansi.Hardwrap(line, v.width, true), "\n")...)
	}
	v.clampScroll()
}

func (v *Viewport) clampScroll() {
	maxY := v.maxScrollY()
	if v.scrollY > maxY {
		v.scrollY = maxY
	}
	if v.scrollY < 0 {
		v.scrollY = 0
	}
}

func (v *Viewport) maxScrollY() int {
	max := len(v.wrapped) - v.rows()
	if max < 0 {
		return 0
	}
	return max
}

func (v *Viewport) scrollIndicator() string {
	total := len(v.wrapped)
	if total <= v.height {
		return ""
	}

	pct := (v.scrollY + v.rows()) * 100 / total
	if pct > 100 {
		pct = 100
	}
	label := " " + strconv.Itoa(pct) + "% (" + strconv.Itoa(v.scrollY+1) + "/" + strconv.Itoa(total) + ")"
	dashes := v.width - len(label)
	if dashes < 0 {
		dashes = 0
	}
	return StyleDimmed.Render(strings.Repeat("─", dashes) + label)
}
