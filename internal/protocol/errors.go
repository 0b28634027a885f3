package protocol

import "sandcave.dev/internal/sim/cave"

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"
	ErrProtoType       = "E_PROTO_TYPE"

	// Simulation layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrBlocked    = "E_BLOCKED"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrProtoType:       {},
	ErrBadRequest:      {},
	ErrBlocked:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// NewDoneError is the reply to a step request on a cave that can no longer
// change.
func NewDoneError(st cave.State) ErrorMsg {
	if st.Status == cave.Blocked {
		return NewError(ErrBlocked, "source is blocked")
	}
	return NewError(ErrBlocked, "grain fell out of a bottomless cave")
}

// NewError builds an ERROR message. Unknown codes collapse to ErrInternal.
func NewError(code, message string) ErrorMsg {
	if code == "" || !IsKnownCode(code) {
		code = ErrInternal
	}
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		Code:            code,
		Message:         message,
	}
}
