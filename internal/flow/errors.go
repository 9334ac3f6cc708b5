package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillworks/quill/internal/client"
	"github.com/quillworks/quill/internal/stream"
)

// FriendlyError turns a session failure cause into the one user-visible
// message appended to the owning surface. The user is never left with a
// silent hang; every fatal cause maps to a readable explanation.
func FriendlyError(err error) string {
	var httpErr *client.HTTPError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, stream.ErrInactivity):
		return "The connection went quiet and timed out. Please try again."
	case errors.Is(err, stream.ErrParseExceeded):
		return "The response stream was repeatedly unreadable and was stopped."
	case errors.As(err, &httpErr):
		return fmt.Sprintf("The server rejected the request (%d %s).", httpErr.Status, httpErr.StatusText)
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request took too long and was stopped."
	default:
		return "Something went wrong while reading the response. Please try again."
	}
}
