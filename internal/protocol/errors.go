package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrBlocked       = "E_BLOCKED"
	ErrConflict      = "E_CONFLICT"
	ErrNotConfigured = "E_NOT_CONFIGURED"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrNoPermission:    {},
	ErrBlocked:         {},
	ErrConflict:        {},
	ErrNotConfigured:   {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
