package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewport_WrapsLongLines(t *testing.T) {
	v := NewViewport(5, 10)
	v.SetContentLines([]string{"abcdefghij", "xy"})
	require.Equal(t, 3, v.LineCount())
	require.True(t, strings.HasPrefix(v.Render(), "abcde\nfghij\nxy"))
}

func TestViewport_ScrollClamps(t *testing.T) {
	v := NewViewport(10, 3)
	v.SetContent("1\n2\n3\n4\n5")

	v.End()
	require.True(t, v.AtBottom())
	require.True(t, strings.HasPrefix(v.Render(), "4\n5\n"))

	v.ScrollDown(10)
	require.True(t, v.AtBottom())

	v.ScrollUp(100)
	require.True(t, strings.HasPrefix(v.Render(), "1\n2\n"))

	v.PageDown()
	require.True(t, strings.HasPrefix(v.Render(), "3\n4\n"))
}

func TestViewport_IndicatorFitsHeight(t *testing.T) {
	v := NewViewport(20, 3)
	v.SetContent("1\n2\n3\n4\n5")

	v.Home()
	lines := strings.Split(v.Render(), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[2], "40% (1/5)")

	v.End()
	lines = strings.Split(v.Render(), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, []string{"4", "5"}, lines[:2])
	require.Contains(t, lines[2], "100% (4/5)")
}

func TestViewport_NoIndicatorWhenContentFits(t *testing.T) {
	v := NewViewport(10, 3)
	v.SetContent("a\nb")
	require.Equal(t, "a\nb\n", v.Render())
}

func TestViewport_Empty(t *testing.T) {
	v := NewViewport(10, 2)
	v.SetContent("")
	require.Empty(t, v.Render())
	require.True(t, v.AtBottom())
}
