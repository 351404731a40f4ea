package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatGlobalAdded(t *testing.T) {
	got := FormatGlobalAdded(3, "wl_seat", 9)
	assert.Contains(t, got, "wl_seat")
	assert.Contains(t, got, "3")
	assert.Contains(t, got, "v9")
	assert.Contains(t, got, IconAdded)
}

func TestFormatGlobalRemoved(t *testing.T) {
	got := FormatGlobalRemoved(12)
	assert.Contains(t, got, "12")
	assert.Contains(t, got, "removed")
}

func TestFormatHeader(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		subtitle string
	}{
		{name: "with subtitle", title: "GLOBALS", subtitle: "wayland-1"},
		{name: "title only", title: "CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatHeader(tt.title, tt.subtitle)
			assert.Contains(t, got, tt.title)
			assert.Contains(t, got, tt.subtitle)
			assert.Equal(t, 1, strings.Count(got, "\n"))
		})
	}
}

func TestNewTable(t *testing.T) {
	out := NewTable("NAME", "INTERFACE").Row("1", "wl_compositor").String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "wl_compositor")
}

func TestCreateSeparator(t *testing.T) {
	tests := []struct {
		name  string
		width int
		char  string
		want  string
	}{
		{name: "explicit", width: 5, char: "=", want: "====="},
		{name: "defaults", width: 0, char: "", want: strings.Repeat("─", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, CreateSeparator(tt.width, tt.char), tt.want)
		})
	}
}
