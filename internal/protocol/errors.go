package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Admission layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrRateLimit  = "E_RATE_LIMIT"

	// Scheduler/executor layer.
	ErrConflict      = "E_CONFLICT"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrTimeout       = "E_TIMEOUT"
	ErrUnknownType   = "E_UNKNOWN_TYPE"

	// Path cache.
	ErrNotFound = "E_NOT_FOUND"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrRateLimit:       {},
	ErrConflict:        {},
	ErrInvalidTarget:   {},
	ErrNoResource:      {},
	ErrTimeout:         {},
	ErrUnknownType:     {},
	ErrNotFound:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
