package failure

import "fmt"

// User-facing messages shown next to a retry action.
const (
	MsgConnection = "Check your internet connection."
	MsgTimeout    = "The request took too long and was stopped. Please try again."
	MsgServer     = "The server is having a temporary problem. Please try again shortly."
	MsgRequest    = "The request could not be processed. Please try again shortly."
	MsgData       = "Something went wrong while loading data. Please try again shortly."
	MsgGeneric    = "A temporary error occurred. Please try again shortly."
)

// UserMessage maps err to a message suitable for an error banner.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsTimeout(err) {
		return MsgTimeout
	}
	switch KindOf(err) {
	case Network:
		return MsgConnection
	case HTTP:
		status := StatusOf(err)
		switch {
		case status >= 500:
			return MsgServer
		case status >= 400:
			return MsgRequest
		}
	case Parse:
		return MsgData
	}
	if status := StatusOf(err); status != 0 {
		return fmt.Sprintf("%s (code: %d)", MsgGeneric, status)
	}
	return MsgGeneric
}
