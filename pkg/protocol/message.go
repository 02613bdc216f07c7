// Package protocol defines the relay wire protocol: the register/join/message
// command set, its payload encoding and the length-delimited frames that carry
// it over a stream transport.
package protocol

// Command identifies the kind of a Message.
type Command uint8

const (
	CommandRegister Command = iota + 1
	CommandJoin
	CommandMessage
)

// String returns the string representation of Command
func (c Command) String() string {
	switch c {
	case CommandRegister:
		return "register"
	case CommandJoin:
		return "join"
	case CommandMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Message is one unit exchanged over the wire. It is implemented only by
// Register, Join and Text, each carrying exactly the fields legal for its
// command.
type Message interface {
	Command() Command
	isMessage()
}

// Register announces the display name a client wants.
type Register struct {
	Name string
}

// Join subscribes the sender to a channel. The empty string is a valid
// channel name.
type Join struct {
	Channel string
}

// Text carries a chat line addressed to a channel.
type Text struct {
	Channel string
	Message string
}

// Command implements Message.
func (Register) Command() Command { return CommandRegister }

// Command implements Message.
func (Join) Command() Command { return CommandJoin }

// Command implements Message.
func (Text) Command() Command { return CommandMessage }

func (Register) isMessage() {}
func (Join) isMessage() {}
func (Text) isMessage() {}

// NewRegister builds a register message.
func NewRegister(name string) Register {
	return Register{Name: name}
}

// NewJoin builds a join message. Any channel name is accepted, the empty
// string included.
func NewJoin(channel string) Join {
	return Join{Channel: channel}
}

// NewText builds a message addressed to *channel. A nil channel means no
// destination was chosen; it is rejected here so such a message never
// reaches the wire. A non-nil pointer to "" addresses the channel named "".
func NewText(message string, channel *string) (Text, error) {
	if channel == nil {
		return Text{}, &ConstructionError{Command: CommandMessage, Field: "channel"}
	}
	return Text{Channel: *channel, Message: message}, nil
}
