package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Command:     CmdReadNotify,
		PayloadSize: 16,
		DataType:    19,
		DataCount:   1,
		Param1:      0x01020304,
		Param2:      0xAABBCCDD,
	}
	buf := EncodeHeader(h)
	require.Len(t, buf, HeaderSize)

	out, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, out)
}

func TestHeaderWireLayout(t *testing.T) {
	buf := EncodeHeader(Header{
		Command:     CmdSearch,
		PayloadSize: 8,
		DataType:    MinorProtocolVersion,
		DataCount:   0,
		Param1:      5,
		Param2:      5,
	})
	want := []byte{
		0x00, 0x06, // command
		0x00, 0x08, // payload size
		0x00, 0x0D, // data type
		0x00, 0x00, // data count
		0x00, 0x00, 0x00, 0x05, // param1
		0x00, 0x00, 0x00, 0x05, // param2
	}
	assert.Equal(t, want, buf)
}

func TestExtendedHeaderRoundTrip(t *testing.T) {
	h := Header{
		Command:     CmdEventAdd,
		PayloadSize: 0x12345,
		DataType:    6,
		DataCount:   0x10000,
		Param1:      1,
		Param2:      2,
	}
	buf := EncodeHeader(h)
	require.Len(t, buf, ExtendedHeaderSize)

	msg, err := ReadMessage(bytes.NewReader(append(buf, make([]byte, 0x12345)...)), Limits{MaxPayloadBytes: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, h, msg.Header)
	assert.Len(t, msg.Payload, 0x12345)
}

func TestMessageRoundTrip(t *testing.T) {
	payload := make([]byte, 16)
	payload[15] = 0x2A
	in := Message{
		Header: Header{
			Command:   CmdReadNotify,
			DataType:  19,
			DataCount: 1,
			Param1:    uint32(Normal.Code()),
			Param2:    77,
		},
		Payload: payload,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, in, DefaultLimits()))

	out, err := ReadMessage(&buf, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, uint32(16), out.Header.PayloadSize)
	assert.Equal(t, in.Header.Command, out.Header.Command)
	assert.Equal(t, payload, out.Payload)
}

func TestReadMessageShortHeader(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	buf := EncodeHeader(Header{Command: CmdWrite, PayloadSize: 1024})
	_, err := ReadMessage(bytes.NewReader(buf), Limits{MaxPayloadBytes: 512})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestErrorConditionCodes(t *testing.T) {
	assert.Equal(t, uint16(1), Normal.Code())
	assert.Equal(t, uint16(114), ErrBadType.Code())
	assert.Equal(t, uint16(152), ErrGetFail.Code())
	assert.Equal(t, uint16(160), ErrPutFail.Code())
	assert.Equal(t, uint16(402), ErrNoConvert.Code())
	assert.Equal(t, uint16(434), ErrUnavailInServ.Code())

	assert.Equal(t, SeverityError, ErrBadType.Severity())
	assert.Equal(t, SeverityWarning, ErrGetFail.Severity())
	assert.True(t, Normal.IsSuccess())
	assert.False(t, ErrNoConvert.IsSuccess())
}

func TestConditionOf(t *testing.T) {
	assert.Equal(t, ErrNoConvert, ConditionOf(ErrNoConvert, ErrGetFail))
	assert.Equal(t, ErrGetFail, ConditionOf(errors.New("backend exploded"), ErrGetFail))
}

func TestAccessRights(t *testing.T) {
	assert.False(t, NoAccess.CanRead())
	assert.False(t, NoAccess.CanWrite())
	assert.True(t, ReadOnly.CanRead())
	assert.False(t, ReadOnly.CanWrite())
	assert.True(t, ReadWrite.CanRead())
	assert.True(t, ReadWrite.CanWrite())
	assert.Equal(t, uint32(3), ReadWrite.Mask())
}

func TestMonitorMask(t *testing.T) {
	m := MonitorValue | MonitorAlarm
	assert.True(t, m.Has(MonitorValue))
	assert.True(t, m.Has(MonitorAlarm))
	assert.False(t, m.Has(MonitorLog))
	assert.False(t, m.Has(MonitorProperty))
}
