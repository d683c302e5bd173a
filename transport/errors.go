package transport

import (
	"errors"
	"fmt"

	"github.com/coevolve/coevolve/wire"
)

var (
	errOutOfRange = errors.New("destination rank out of range")
	errClosed     = errors.New("transport closed")
)

// mismatchError reports a tag sequence violation: the caller asked to
// Recv a specific tag, but the next queued message from that source
// carries a different one.
type mismatchError struct {
	want, got wire.Tag
}

func (e mismatchError) Error() string {
	return fmt.Sprintf("expected tag %s, got %s", e.want, e.got)
}
