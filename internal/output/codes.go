// Package output provides JSON/YAML output formatting, user notices,
// and error handling.
package output

// Exit codes.
const (
	ExitOK       = 0 // Success
	ExitUsage    = 1 // Invalid arguments or flags
	ExitNotFound = 2 // Resource not found
	ExitAuth     = 3 // Not authenticated
	ExitProtocol = 4 // Login handshake rejected (state mismatch, bad callback)
	ExitNetwork  = 5 // Connection/DNS/timeout error
	ExitAPI      = 6 // Server returned error
)

// Error codes for the JSON envelope.
const (
	CodeUsage    = "usage"
	CodeNotFound = "not_found"
	CodeAuth     = "auth_required"
	CodeProtocol = "protocol"
	CodeNetwork  = "network"
	CodeAPI      = "api_error"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeProtocol:
		return ExitProtocol
	case CodeNetwork:
		return ExitNetwork
	case CodeAPI:
		return ExitAPI
	default:
		return ExitAPI
	}
}
