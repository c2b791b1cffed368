package playback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Command
	}{
		{"seek", `{"type":"seek","index":3}`, Seek(3)},
		{"toggle", `{"type":"toggle_pause"}`, TogglePause()},
		{"dashes", `{"type":"Step-Forward"}`, StepForward()},
		{"step back", `{"type":"step_backward"}`, StepBackward()},
		{"set paused", `{"type":"set_paused","paused":true}`, SetPaused(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			require.NoError(t, json.Unmarshal([]byte(tt.body), &cmd))
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestCommandJSONErrors(t *testing.T) {
	bodies := []string{
		`{"type":"rewind"}`,
		`{"type":"seek"}`,
		`{"type":"set_paused"}`,
		`{"type":`,
	}
	for _, body := range bodies {
		var cmd Command
		assert.Error(t, json.Unmarshal([]byte(body), &cmd), body)
	}
}

func TestCommandMarshal(t *testing.T) {
	raw, err := json.Marshal(Seek(7))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"seek","index":7}`, string(raw))

	raw, err = json.Marshal(SetPaused(false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"set_paused","paused":false}`, string(raw))

	raw, err = json.Marshal(StepForward())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"step_forward"}`, string(raw))
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "seek(4)", Seek(4).String())
	assert.Equal(t, "toggle_pause", TogglePause().String())
	assert.Equal(t, "command(42)", CommandType(42).String())
}
