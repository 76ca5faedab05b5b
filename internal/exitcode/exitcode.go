package exitcode

// Exit codes for newsterm commands
const (
	Success   = 0
	Error     = 1
	NoNetwork = 2
	Cancelled = 130 // 128 + SIGINT
)

// ExitError is an error that carries a specific exit code
type ExitError struct {
	Code    int
	Message string
}

func (e ExitError) Error() string {
	return e.Message
}

// Convenience constructors
func Offline(msg string) ExitError { return ExitError{Code: NoNetwork, Message: msg} }
func Cancel() ExitError            { return ExitError{Code: Cancelled, Message: "cancelled"} }
