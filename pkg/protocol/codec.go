package protocol

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Payload field numbers. The payload is a protobuf-wire record so every field
// is tagged with its number and wire type.
const (
	fieldCommand protowire.Number = 1
	fieldName    protowire.Number = 2
	fieldChannel protowire.Number = 3
	fieldMessage protowire.Number = 4
)

// Marshal encodes the message payload (without frame header).
// Fields are emitted in ascending field order so the output is deterministic.
func Marshal(m Message) ([]byte, error) {
	if m == nil {
		return nil, &ConstructionError{Field: "command"}
	}

	b := protowire.AppendTag(nil, fieldCommand, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Command()))

	switch v := m.(type) {
	case Register:
		b = appendString(b, fieldName, v.Name)
	case Join:
		b = appendString(b, fieldChannel, v.Channel)
	case Text:
		b = appendString(b, fieldChannel, v.Channel)
		b = appendString(b, fieldMessage, v.Message)
	default:
		return nil, fmt.Errorf("failed to encode message: unsupported type %T", m)
	}
	return b, nil
}

// Unmarshal decodes a payload into a Message. Any payload whose field set does
// not exactly match its command yields a *BadFormatError.
func Unmarshal(payload []byte) (Message, error) {
	rec, err := consumeRecord(payload)
	if err != nil {
		return nil, badFormat(payload, err)
	}
	msg, err := rec.build()
	if err != nil {
		return nil, badFormat(payload, err)
	}
	return msg, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// record is the raw field set of one payload with per-field presence.
type record struct {
	seen    uint8
	command uint64
	name    string
	channel string
	message string
}

func (r *record) has(num protowire.Number) bool {
	return r.seen&(1<<uint(num)) != 0
}

func consumeRecord(b []byte) (*record, error) {
	rec := &record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		if num < fieldCommand || num > fieldMessage {
			return nil, fmt.Errorf("%w: %d", ErrUnknownField, num)
		}
		if rec.has(num) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, fieldLabel(num))
		}

		if num == fieldCommand {
			if typ != protowire.VarintType {
				return nil, fmt.Errorf("command: unexpected wire type %d", typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rec.command = v
			b = b[n:]
		} else {
			if typ != protowire.BytesType {
				return nil, fmt.Errorf("%s: unexpected wire type %d", fieldLabel(num), typ)
			}
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			if !utf8.ValidString(s) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidUTF8, fieldLabel(num))
			}
			switch num {
			case fieldName:
				rec.name = s
			case fieldChannel:
				rec.channel = s
			case fieldMessage:
				rec.message = s
			}
			b = b[n:]
		}
		rec.seen |= 1 << uint(num)
	}
	return rec, nil
}

// build checks the field set against the command and builds the variant.
func (r *record) build() (Message, error) {
	if !r.has(fieldCommand) {
		return nil, fmt.Errorf("%w: command", ErrMissingField)
	}

	if r.command == 0 || r.command > uint64(CommandMessage) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, r.command)
	}
	cmd := Command(r.command)

	var required []protowire.Number
	switch cmd {
	case CommandRegister:
		required = []protowire.Number{fieldName}
	case CommandJoin:
		required = []protowire.Number{fieldChannel}
	case CommandMessage:
		required = []protowire.Number{fieldChannel, fieldMessage}
	}

	for _, num := range required {
		if !r.has(num) {
			return nil, fmt.Errorf("%w: %s requires %s", ErrMissingField, cmd, fieldLabel(num))
		}
	}
	for num := fieldName; num <= fieldMessage; num++ {
		if r.has(num) && !contains(required, num) {
			return nil, fmt.Errorf("%w: %s in %s", ErrUnexpectedField, fieldLabel(num), cmd)
		}
	}

	switch cmd {
	case CommandRegister:
		return Register{Name: r.name}, nil
	case CommandJoin:
		return Join{Channel: r.channel}, nil
	default:
		return Text{Channel: r.channel, Message: r.message}, nil
	}
}

func fieldLabel(num protowire.Number) string {
	switch num {
	case fieldCommand:
		return "command"
	case fieldName:
		return "name"
	case fieldChannel:
		return "channel"
	case fieldMessage:
		return "message"
	default:
		return fmt.Sprintf("field %d", num)
	}
}

func contains(nums []protowire.Number, num protowire.Number) bool {
	for _, n := range nums {
		if n == num {
			return true
		}
	}
	return false
}
