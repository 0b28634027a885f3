package protocol

import (
	"encoding/json"
	"strings"
)

const Version = "1.0"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeStep      = "STEP"
	TypeState     = "STATE"
	TypeError     = "ERROR"
)

// Compatible reports whether a client speaking v can talk to this server:
// the major versions match and v names a minor version.
func Compatible(v string) bool {
	major, minor, ok := strings.Cut(v, ".")
	want, _, _ := strings.Cut(Version, ".")
	return ok && minor != "" && major == want
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
