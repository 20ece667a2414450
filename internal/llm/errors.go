package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnreachable means the model server did not accept a connection.
	ErrUnreachable = errors.New("model server unreachable")

	ErrTimeout = errors.New("model request timed out")

	// ErrRateLimited means the local call budget had no token before the
	// caller's deadline.
	ErrRateLimited = errors.New("model call budget exhausted")

	// ErrInvalidOutput means the response was not the structured JSON the
	// caller asked for.
	ErrInvalidOutput = errors.New("invalid model output")

	ErrRetryExhausted = errors.New("model retry attempts exhausted")
)

// classify maps the last attempt's error onto the package sentinels.
func classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return fmt.Errorf("%w: no attempt made", ErrRetryExhausted)
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrRateLimited), errors.Is(err, ErrInvalidOutput):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case isConnectionError(err):
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	default:
		return fmt.Errorf("%w: %v", ErrRetryExhausted, err)
	}
}

func isConnectionError(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

// errorCode is the short code reported to observers.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrUnreachable):
		return "UNAVAILABLE"
	case errors.Is(err, ErrInvalidOutput):
		return "INVALID_OUTPUT"
	case errors.Is(err, ErrRetryExhausted):
		return "RETRY_EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}
