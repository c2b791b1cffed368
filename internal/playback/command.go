package playback

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CommandType names one user intent understood by the engine.
type CommandType int

const (
	CommandTogglePause CommandType = iota
	CommandStepForward
	CommandStepBackward
	CommandSeek
	CommandSetPaused
)

var commandNames = map[CommandType]string{
	CommandTogglePause:  "toggle_pause",
	CommandStepForward:  "step_forward",
	CommandStepBackward: "step_backward",
	CommandSeek:         "seek",
	CommandSetPaused:    "set_paused",
}

func (t CommandType) String() string {
	if name, ok := commandNames[t]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(t))
}

// ParseCommandType maps a command name back to its type. Matching is case
// insensitive and accepts dashes for underscores.
func ParseCommandType(s string) (CommandType, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for t, n := range commandNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

// Command is a value produced by an input layer and applied with
// Engine.Handle. Index is read by CommandSeek, Paused by CommandSetPaused.
type Command struct {
	Type   CommandType
	Index  int
	Paused bool
}

func TogglePause() Command { return Command{Type: CommandTogglePause} }

func StepForward() Command { return Command{Type: CommandStepForward} }

func StepBackward() Command { return Command{Type: CommandStepBackward} }

func Seek(index int) Command { return Command{Type: CommandSeek, Index: index} }

func SetPaused(paused bool) Command { return Command{Type: CommandSetPaused, Paused: paused} }

func (c Command) String() string {
	switch c.Type {
	case CommandSeek:
		return fmt.Sprintf("seek(%d)", c.Index)
	case CommandSetPaused:
		return fmt.Sprintf("set_paused(%t)", c.Paused)
	default:
		return c.Type.String()
	}
}

type commandJSON struct {
	Type   string `json:"type"`
	Index  *int   `json:"index,omitempty"`
	Paused *bool  `json:"paused,omitempty"`
}

// MarshalJSON encodes the command as {"type":"seek","index":3}.
func (c Command) MarshalJSON() ([]byte, error) {
	w := commandJSON{Type: c.Type.String()}
	switch c.Type {
	case CommandSeek:
		w.Index = &c.Index
	case CommandSetPaused:
		w.Paused = &c.Paused
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form. Seek requires an index and set_paused
// requires paused.
func (c *Command) UnmarshalJSON(data []byte) error {
	var w commandJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	t, err := ParseCommandType(w.Type)
	if err != nil {
		return err
	}

	cmd := Command{Type: t}
	switch t {
	case CommandSeek:
		if w.Index == nil {
			return fmt.Errorf("seek requires an index")
		}
		cmd.Index = *w.Index
	case CommandSetPaused:
		if w.Paused == nil {
			return fmt.Errorf("set_paused requires paused")
		}
		cmd.Paused = *w.Paused
	}

	*c = cmd
	return nil
}
