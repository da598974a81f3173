package console

import (
	"errors"
	"fmt"
)

// Command names accepted by Do.
const (
	CmdStart   = "start"
	CmdRestart = "restart"
	CmdPause   = "pause"
	CmdResume  = "resume"
	CmdFulfill = "fulfill"
	CmdGoto    = "goto"
	CmdReset   = "reset"
)

// ErrUnknownCommand is returned by Do for an unrecognised command name.
var ErrUnknownCommand = errors.New("console: unknown command")

// Command is an operator request, typically from the web interface.
type Command struct {
	Name string
	// Step is the target of CmdGoto.
	Step string
}

// Do executes an operator command on the loop goroutine.
func (c *Console) Do(cmd Command) error {
	c.logger.Printf("console: command %s %s", cmd.Name, cmd.Step)
	switch cmd.Name {
	case CmdStart:
		return c.StartGame()
	case CmdRestart:
		return c.Restart()
	case CmdPause:
		c.Pause()
	case CmdResume:
		c.Resume()
	case CmdFulfill:
		c.ForceFulfill()
	case CmdGoto:
		if cmd.Step == "" {
			return fmt.Errorf("goto: missing step id")
		}
		return c.Goto(cmd.Step)
	case CmdReset:
		c.Reset()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
	return nil
}
