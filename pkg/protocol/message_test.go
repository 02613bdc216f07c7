package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chanrelay/pkg/protocol"
)

func TestCommand_String(t *testing.T) {
	tests := []struct {
		name string
		cmd  protocol.Command
		want string
	}{
		{"register", protocol.CommandRegister, "register"},
		{"join", protocol.CommandJoin, "join"},
		{"message", protocol.CommandMessage, "message"},
		{"zero value", protocol.Command(0), "unknown"},
		{"out of range", protocol.Command(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestConstructors(t *testing.T) {
	reg := protocol.NewRegister("alice")
	assert.Equal(t, protocol.CommandRegister, reg.Command())
	assert.Equal(t, "alice", reg.Name)

	join := protocol.NewJoin("general")
	assert.Equal(t, protocol.CommandJoin, join.Command())
	assert.Equal(t, "general", join.Channel)

	channel := "general"
	text, err := protocol.NewText("hello", &channel)
	require.NoError(t, err)
	assert.Equal(t, protocol.CommandMessage, text.Command())
	assert.Equal(t, protocol.Text{Channel: "general", Message: "hello"}, text)
}

func TestNewText_RejectsMissingChannel(t *testing.T) {
	_, err := protocol.NewText("hello", nil)
	require.ErrorIs(t, err, protocol.ErrConstruction)

	var cerr *protocol.ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, protocol.CommandMessage, cerr.Command)
	assert.Equal(t, "channel", cerr.Field)
}

func TestEmptyChannelName_IsAChannel(t *testing.T) {
	empty := ""
	text, err := protocol.NewText("hello", &empty)
	require.NoError(t, err)
	assert.Equal(t, protocol.Text{Channel: "", Message: "hello"}, text)

	for _, msg := range []protocol.Message{protocol.NewJoin(""), text} {
		data, err := protocol.Encode(msg)
		require.NoError(t, err)

		got, err := protocol.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}

func TestEncode_RejectsNilMessage(t *testing.T) {
	data, err := protocol.Encode(nil)
	assert.ErrorIs(t, err, protocol.ErrConstruction)
	assert.Nil(t, data)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	mustText := func(text, ch string) protocol.Message {
		m, err := protocol.NewText(text, &ch)
		require.NoError(t, err)
		return m
	}

	tests := []struct {
		name string
		msg  protocol.Message
	}{
		{"register", protocol.NewRegister("alice")},
		{"register with empty name", protocol.NewRegister("")},
		{"register with unicode name", protocol.NewRegister("Zoë 🚀")},
		{"join", protocol.NewJoin("general")},
		{"join with spaces", protocol.NewJoin("off topic")},
		{"message", mustText("hello", "general")},
		{"empty message body", mustText("", "general")},
		{"multi-line message", mustText("line one\nline two", "dev")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := protocol.Encode(tt.msg)
			require.NoError(t, err)
			require.Greater(t, len(data), protocol.HeaderSize)

			got, err := protocol.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	msg := protocol.Text{Channel: "general", Message: "same bytes"}

	first, err := protocol.Encode(msg)
	require.NoError(t, err)
	second, err := protocol.Encode(msg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
