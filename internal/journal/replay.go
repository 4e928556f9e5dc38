package journal

import (
	"fmt"

	"github.com/mattjoyce/cellnode/internal/transport"
)

// Replay re-publishes entries on bus in recording order, dispatching each
// before the next so the queue never overflows. include filters channels;
// nil replays everything. It returns how many entries were replayed.
func Replay(bus *transport.Bus, entries []Entry, include func(channel string) bool) (int, error) {
	n := 0
	for _, e := range entries {
		if include != nil && !include(e.Channel) {
			continue
		}
		if err := bus.PublishRaw(e.Channel, e.Payload); err != nil {
			return n, fmt.Errorf("replay entry %d: %w", e.Seq, err)
		}
		bus.Drain()
		n++
	}
	return n, nil
}
