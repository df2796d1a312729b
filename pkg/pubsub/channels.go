package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming conventions for the canvas relay bus.
const (
	// Relay <-> Relay board event channel.
	ChannelBoardEvents = "canvas:board:%s:events"

	// PatternBoardEvents matches every board channel.
	PatternBoardEvents = "canvas:board:*:events"
)

// Event types carried on board channels. They mirror the relay -> client
// frame types so remote instances can forward payloads verbatim.
const (
	EventSegment = "receive"
	EventClear   = "clear"
)

// BoardChannel returns the channel name for a board's events.
func BoardChannel(board string) string {
	return fmt.Sprintf(ChannelBoardEvents, board)
}

// ParseBoardChannel extracts the board id from a board channel name.
func ParseBoardChannel(channel string) (string, error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[0] != "canvas" || parts[1] != "board" || parts[3] != "events" || parts[2] == "" {
		return "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return parts[2], nil
}
