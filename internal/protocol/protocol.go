package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeAct     = "ACT"
	TypeResult  = "RESULT"

	TypeStatsGet = "STATS_GET"
	TypeStats    = "STATS"

	TypePathGet          = "PATH_GET"
	TypePath             = "PATH"
	TypePathSync         = "PATH_SYNC"
	TypePathValidate     = "PATH_VALIDATE"
	TypePathReport       = "PATH_REPORT"
	TypePathChecksumsGet = "PATH_CHECKSUMS_GET"
	TypePathChecksums    = "PATH_CHECKSUMS"
)

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
