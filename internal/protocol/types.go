package protocol

// Command identifies a Channel Access message.
type Command uint16

const (
	CmdVersion        Command = 0
	CmdEventAdd       Command = 1
	CmdEventCancel    Command = 2
	CmdWrite          Command = 4
	CmdSearch         Command = 6
	CmdBeacon         Command = 13
	CmdNotFound       Command = 14
	CmdReadNotify     Command = 15
	CmdCreateChan     Command = 18
	CmdWriteNotify    Command = 19
	CmdClientName     Command = 20
	CmdHostName       Command = 21
	CmdAccessRights   Command = 22
	CmdEcho           Command = 23
	CmdError          Command = 11
	CmdClearChannel   Command = 12
	CmdCreateChanFail Command = 26
	CmdServerDisconn  Command = 27
)

// MinorProtocolVersion is the CA minor version this server speaks.
const MinorProtocolVersion uint16 = 13

const (
	// HeaderSize is the fixed message header length.
	HeaderSize = 16
	// ExtendedHeaderSize is the header length when the large-payload
	// form is in use.
	ExtendedHeaderSize = 24

	// payloadSizeMarker and dataCountMarker flag the extended form in
	// the 16-bit header fields.
	payloadSizeMarker uint16 = 0xFFFF
	dataCountMarker   uint16 = 0x0000
)

// Header is the Channel Access message header. PayloadSize and
// DataCount are carried as 16-bit fields on the wire unless either
// exceeds the 16-bit range, in which case the extended 24-byte form is
// written.
type Header struct {
	Command     Command
	PayloadSize uint32
	DataType    uint16
	DataCount   uint32
	Param1      uint32
	Param2      uint32
}

// Message is one complete CA message. Payload length must equal
// Header.PayloadSize and be a multiple of 8 for circuit messages.
type Message struct {
	Header  Header
	Payload []byte
}

// Limits constrains message decode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 16 * 1024 * 1024}
}

// AccessRight is the access granted to a client for one PV.
type AccessRight uint32

const (
	NoAccess  AccessRight = 0
	ReadOnly  AccessRight = 1
	ReadWrite AccessRight = 3
)

// Mask returns the wire representation (read bit 0, write bit 1).
func (a AccessRight) Mask() uint32 { return uint32(a) }

// CanRead reports whether the right includes read access.
func (a AccessRight) CanRead() bool { return a&1 != 0 }

// CanWrite reports whether the right includes write access.
func (a AccessRight) CanWrite() bool { return a&2 != 0 }

// MonitorMask selects which change classes a subscription fires on.
type MonitorMask uint16

const (
	MonitorValue    MonitorMask = 1 << 0
	MonitorLog      MonitorMask = 1 << 1
	MonitorAlarm    MonitorMask = 1 << 2
	MonitorProperty MonitorMask = 1 << 3
)

func (m MonitorMask) Has(bit MonitorMask) bool { return m&bit != 0 }
