package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestLayout_ContentHeight(t *testing.T) {
	assert.Equal(t, 21, NewLayout(80, 24).ContentHeight())
	assert.Equal(t, 0, NewLayout(80, 2).ContentHeight())
}

func TestLayout_RenderHeader(t *testing.T) {
	l := NewLayout(60, 24)
	out := l.RenderHeader("socialterm", "connected")
	assert.Contains(t, out, "socialterm")
	assert.Contains(t, out, "connected")
	assert.GreaterOrEqual(t, lipgloss.Width(out), 60)
}

func TestLayout_WithOverlay(t *testing.T) {
	l := NewLayout(40, 10)
	content := "line one\nline two\nline three"

	assert.Equal(t, content, l.WithOverlay(content, ""))

	out := l.WithOverlay(content, "TOAST")
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "line one"))
	assert.True(t, strings.HasSuffix(lines[0], "TOAST"))
	assert.Equal(t, "line two", lines[1])
}

func TestLayout_RenderTabs(t *testing.T) {
	out := NewLayout(80, 24).RenderTabs([]Tab{
		{Key: "1", Label: "feed", Active: true},
		{Key: "2", Label: "friends"},
	})
	assert.Contains(t, out, "1 feed")
	assert.Contains(t, out, "2 friends")
}
