package tui

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/assert"
)

func TestKeyMap_ShortHelp(t *testing.T) {
	keys := defaultKeyMap()

	tests := []struct {
		name     string
		empty    bool
		contains string
		absent   string
	}{
		{name: "empty offers ideas", empty: true, contains: "[↑/↓] ideas", absent: "scroll"},
		{name: "conversation offers scroll", empty: false, contains: "[pgup/pgdn] scroll", absent: "ideas"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			help := HelpString(keys.ShortHelp(tt.empty))
			assert.Contains(t, help, "[enter] send")
			assert.Contains(t, help, "[esc] cancel")
			assert.Contains(t, help, "[ctrl+l] clear")
			assert.Contains(t, help, tt.contains)
			assert.NotContains(t, help, tt.absent)
		})
	}
}

func TestHelpString_SkipsBindingsWithoutHelp(t *testing.T) {
	keys := defaultKeyMap()
	assert.Equal(t, "[tab] filter", HelpString([]key.Binding{keys.PrevFilter, keys.NextFilter}))
}
