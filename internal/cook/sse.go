package cook

import "strings"

// sseEvent is one Server-Sent Event reassembled from stored stream lines.
type sseEvent struct {
	Event string // event type from "event:" line, may be empty
	Data  string // data payload, multi-line data joined with \n
}

// parseSSELines groups the raw lines captured by the proxy back into
// events. Lines are stored without terminators, so a blank line marks an
// event boundary. Comment lines and ping events are skipped. Parsing stops
// after the terminal event ("data: [DONE]" for OpenAI, message_stop for
// Claude); a truncated capture with no terminator still yields its final
// partial event.
func parseSSELines(lines []string) []sseEvent {
	var events []sseEvent
	var current sseEvent
	var dataParts []string

	flush := func() (done bool) {
		if len(dataParts) == 0 && current.Event == "" {
			return false
		}
		current.Data = strings.Join(dataParts, "\n")
		if current.Event != "ping" {
			events = append(events, current)
		}
		done = current.Data == "[DONE]" || current.Event == "message_stop"
		current = sseEvent{}
		dataParts = nil
		return done
	}

	for _, line := range lines {
		if line == "" {
			if flush() {
				return events
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if value, ok := strings.CutPrefix(line, "event:"); ok {
			current.Event = strings.TrimSpace(value)
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			dataParts = append(dataParts, strings.TrimPrefix(value, " "))
			continue
		}
	}
	flush()
	return events
}
