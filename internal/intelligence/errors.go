package intelligence

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/cadence/internal/llm"
)

// ErrUpstreamUnavailable reports that the language model could not produce a
// usable answer. Callers can retry or fall back to unreviewed output; nothing
// has been written when it is returned.
var ErrUpstreamUnavailable = errors.New("upstream model unavailable")

// upstream wraps err so that it matches both ErrUpstreamUnavailable and the
// underlying llm sentinel.
func upstream(op string, err error) error {
	if err == nil {
		err = llm.ErrUnreachable
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
}

// invalidOutput marks a response that parsed but failed validation.
func invalidOutput(op, format string, args ...any) error {
	return upstream(op, fmt.Errorf("%w: %s", llm.ErrInvalidOutput, fmt.Sprintf(format, args...)))
}
