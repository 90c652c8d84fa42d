package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrShortHeader      = errors.New("protocol: short message header")
	ErrPayloadTooLarge  = errors.New("protocol: payload too large")
	ErrPayloadMismatch  = errors.New("protocol: payload length does not match header")
	ErrPayloadUnaligned = errors.New("protocol: payload not 8-byte aligned")
)

// Severity bits carried in the low three bits of an ECA status code.
type Severity uint16

const (
	SeverityWarning Severity = 0
	SeveritySuccess Severity = 1
	SeverityError   Severity = 2
	SeverityInfo    Severity = 3
	SeveritySevere  Severity = 4
)

// ErrorCondition is an ECA status code: (message number << 3) | severity.
// The numbering is a protocol constant shared with every CA peer.
type ErrorCondition uint16

func condition(msgNo uint16, sev Severity) ErrorCondition {
	return ErrorCondition(msgNo<<3 | uint16(sev))
}

var (
	Normal           = condition(0, SeveritySuccess)
	ErrGetFail       = condition(19, SeverityWarning)
	ErrPutFail       = condition(20, SeverityWarning)
	ErrBadType       = condition(14, SeverityError)
	ErrBadCount      = condition(22, SeverityWarning)
	ErrDisconn       = condition(24, SeverityWarning)
	ErrEvDisallow    = condition(26, SeverityError)
	ErrNoRdAccess    = condition(46, SeverityWarning)
	ErrNoWtAccess    = condition(47, SeverityWarning)
	ErrNoConvert     = condition(50, SeverityError)
	ErrBadChID       = condition(51, SeverityError)
	ErrUnavailInServ = condition(54, SeverityError)
)

var conditionNames = map[ErrorCondition]string{
	Normal:           "normal successful completion",
	ErrGetFail:       "channel read request failed",
	ErrPutFail:       "channel write request failed",
	ErrBadType:       "invalid data type",
	ErrBadCount:      "invalid element count requested",
	ErrDisconn:       "virtual circuit disconnect",
	ErrEvDisallow:    "request inappropriate within subscription",
	ErrNoRdAccess:    "read access denied",
	ErrNoWtAccess:    "write access denied",
	ErrNoConvert:     "no reasonable type conversion possible",
	ErrBadChID:       "invalid channel identifier",
	ErrUnavailInServ: "not supported by this server",
}

func (e ErrorCondition) Error() string {
	if name, ok := conditionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("unknown condition %d", uint16(e))
}

// Severity extracts the severity bits of the code.
func (e ErrorCondition) Severity() Severity { return Severity(e & 0x7) }

// Code returns the wire value carried in error and notify replies.
func (e ErrorCondition) Code() uint16 { return uint16(e) }

// IsSuccess reports whether the condition denotes success.
func (e ErrorCondition) IsSuccess() bool {
	s := e.Severity()
	return s == SeveritySuccess || s == SeverityInfo
}

// ConditionOf maps an error returned by a provider or by the record
// conversion layer onto the ECA code to report to the client. Non-CA
// errors collapse to fallback.
func ConditionOf(err error, fallback ErrorCondition) ErrorCondition {
	var cond ErrorCondition
	if errors.As(err, &cond) {
		return cond
	}
	return fallback
}
