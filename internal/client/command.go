package client

import (
	"errors"
	"strings"
)

// Action is what a line of local input asks the client to do.
type Action int

const (
	// ActionSend sends Input.Arg to the active channel.
	ActionSend Action = iota
	// ActionJoin subscribes to Input.Arg and makes it the active channel.
	ActionJoin
	// ActionExit closes the connection and ends the loop.
	ActionExit
)

const (
	joinCommand = "/join"
	exitCommand = "exit"
)

// ErrJoinUsage is returned for a /join without a channel argument.
var ErrJoinUsage = errors.New("usage: /join <channel>")

// Input is one parsed line of local input.
type Input struct {
	Action Action
	Arg    string
}

// ParseInput interprets one line of local input. Only the line terminator is
// stripped: "exit" must match exactly, the /join argument is everything after
// the separating space, and any other line (blank ones included) is text.
func ParseInput(line string) (Input, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	switch {
	case line == exitCommand:
		return Input{Action: ActionExit}, nil
	case line == joinCommand:
		return Input{}, ErrJoinUsage
	case strings.HasPrefix(line, joinCommand+" "):
		return Input{Action: ActionJoin, Arg: line[len(joinCommand)+1:]}, nil
	default:
		return Input{Action: ActionSend, Arg: line}, nil
	}
}
