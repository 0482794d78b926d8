package widgets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoopBar(t *testing.T) {
	t.Parallel()

	bar := LoopBar{Width: 8, Filled: '#', Empty: '-', Beat: '|'}

	assert.Equal(t, "#-|-|-|-", bar.Render(0, 96, 4))
	assert.Equal(t, "###-|-|-", bar.Render(24, 96, 4))
	// position wraps with the loop
	assert.Equal(t, "###-|-|-", bar.Render(120, 96, 4))
	assert.Equal(t, "########", bar.Render(95, 96, 4))
	assert.Equal(t, "--------", bar.Render(10, 0, 4))
	assert.Equal(t, "", LoopBar{}.Render(1, 2, 1))
}

func TestRenderKeyLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "q:quit  +/-:beats", RenderKeyLine([]KeyBinding{{"q", "quit"}, {"+/-", "beats"}}))
	assert.Equal(t, "Keys\n  q            quit", RenderKeyHelp([]KeySection{{Title: "Keys", Keys: []KeyBinding{{"q", "quit"}}}}))
}
