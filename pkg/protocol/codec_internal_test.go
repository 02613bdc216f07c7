package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type wireField struct {
	num protowire.Number
	v   any // uint64 for varint fields, string for bytes fields
}

func buildPayload(fields ...wireField) []byte {
	var b []byte
	for _, f := range fields {
		switch v := f.v.(type) {
		case uint64:
			b = protowire.AppendTag(b, f.num, protowire.VarintType)
			b = protowire.AppendVarint(b, v)
		case string:
			b = protowire.AppendTag(b, f.num, protowire.BytesType)
			b = protowire.AppendString(b, v)
		default:
			panic(fmt.Sprintf("wireField %d: unsupported value %T", f.num, f.v))
		}
	}
	return b
}

func TestMarshal_FieldLayout(t *testing.T) {
	got, err := Marshal(Text{Channel: "general", Message: "hi"})
	require.NoError(t, err)

	want := buildPayload(
		wireField{fieldCommand, uint64(CommandMessage)},
		wireField{fieldChannel, "general"},
		wireField{fieldMessage, "hi"},
	)
	assert.Equal(t, want, got)
}

func TestUnmarshal_AcceptsAnyFieldOrder(t *testing.T) {
	payload := buildPayload(
		wireField{fieldMessage, "hi"},
		wireField{fieldChannel, "general"},
		wireField{fieldCommand, uint64(CommandMessage)},
	)

	msg, err := Unmarshal(payload)
	require.NoError(t, err)
	assert.Equal(t, Text{Channel: "general", Message: "hi"}, msg)
}

func TestUnmarshal_PresentEmptyChannel(t *testing.T) {
	payload := buildPayload(
		wireField{fieldCommand, uint64(CommandJoin)},
		wireField{fieldChannel, ""},
	)

	msg, err := Unmarshal(payload)
	require.NoError(t, err)
	assert.Equal(t, Join{Channel: ""}, msg)
}

func TestBuildPayload_EmitsCommandField(t *testing.T) {
	got := buildPayload(wireField{fieldCommand, uint64(9)})
	assert.Equal(t, []byte{0x08, 0x09}, got)
	assert.Panics(t, func() { buildPayload(wireField{fieldCommand, 9}) })
}

func TestUnmarshal_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		cause   error
	}{
		{
			name:    "empty payload",
			payload: nil,
			cause:   ErrMissingField,
		},
		{
			name:    "register without name",
			payload: buildPayload(wireField{fieldCommand, uint64(CommandRegister)}),
			cause:   ErrMissingField,
		},
		{
			name:    "join without channel",
			payload: buildPayload(wireField{fieldCommand, uint64(CommandJoin)}),
			cause:   ErrMissingField,
		},
		{
			name: "message without body",
			payload: buildPayload(
				wireField{fieldCommand, uint64(CommandMessage)},
				wireField{fieldChannel, "general"},
			),
			cause: ErrMissingField,
		},
		{
			name: "message without channel",
			payload: buildPayload(
				wireField{fieldCommand, uint64(CommandMessage)},
				wireField{fieldMessage, "hello"},
			),
			cause: ErrMissingField,
		},
		{
			name:    "fields without command",
			payload: buildPayload(wireField{fieldChannel, "general"}),
			cause:   ErrMissingField,
		},
		{
			name: "unknown command",
			payload: buildPayload(
				wireField{fieldCommand, uint64(9)},
				wireField{fieldChannel, "general"},
			),
			cause: ErrUnknownCommand,
		},
		{
			name: "command that truncates onto a valid one",
			payload: buildPayload(
				wireField{fieldCommand, uint64(257)},
				wireField{fieldName, "alice"},
			),
			cause: ErrUnknownCommand,
		},
		{
			name: "zero command",
			payload: buildPayload(
				wireField{fieldCommand, uint64(0)},
				wireField{fieldName, "alice"},
			),
			cause: ErrUnknownCommand,
		},
		{
			name: "register carrying a channel",
			payload: buildPayload(
				wireField{fieldCommand, uint64(CommandRegister)},
				wireField{fieldName, "alice"},
				wireField{fieldChannel, "general"},
			),
			cause: ErrUnexpectedField,
		},
		{
			name: "join carrying a message",
			payload: buildPayload(
				wireField{fieldCommand, uint64(CommandJoin)},
				wireField{fieldChannel, "general"},
				wireField{fieldMessage, "hello"},
			),
			cause: ErrUnexpectedField,
		},
		{
			name: "duplicate channel",
			payload: buildPayload(
				wireField{fieldCommand, uint64(CommandJoin)},
				wireField{fieldChannel, "a"},
				wireField{fieldChannel, "b"},
			),
			cause: ErrDuplicateField,
		},
		{
			name: "unknown field",
			payload: buildPayload(
				wireField{fieldCommand, uint64(CommandRegister)},
				wireField{fieldName, "alice"},
				wireField{9, "extra"},
			),
			cause: ErrUnknownField,
		},
		{
			name: "invalid utf-8",
			payload: buildPayload(
				wireField{fieldCommand, uint64(CommandRegister)},
				wireField{fieldName, "\xff\xfe"},
			),
			cause: ErrInvalidUTF8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Unmarshal(tt.payload)
			assert.Nil(t, msg)
			require.ErrorIs(t, err, ErrBadFormat)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestUnmarshal_CorruptWireData(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"truncated varint", []byte{0x08, 0x80}},
		{"string length past end", []byte{0x08, 0x01, 0x12, 0x10, 'a'}},
		{"wrong wire type for command", buildPayload(wireField{fieldCommand, "register"})},
		{"wrong wire type for name", buildPayload(
			wireField{fieldCommand, uint64(CommandRegister)},
			wireField{fieldName, uint64(7)},
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Unmarshal(tt.payload)
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, ErrBadFormat)
		})
	}
}
