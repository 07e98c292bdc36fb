package streaminghttp

import (
	"strconv"
	"strings"
)

// UseStreamTransport decides the response transport from the raw Accept
// header. Quality defaults: text/event-stream 0 when absent, application/json
// 1.0 when absent (JSON is the favored default). Stream transport is selected
// iff the event-stream quality strictly exceeds the JSON quality; ties favor
// JSON, so a generic "*/*" or an absent header selects a single JSON body.
// Pure function.
func UseStreamTransport(accept string) bool {
	streamQ := 0.0
	jsonQ := 1.0

	for _, entry := range strings.Split(accept, ",") {
		parts := strings.Split(entry, ";")
		mediaType := strings.ToLower(strings.TrimSpace(parts[0]))

		q := 1.0
		for _, param := range parts[1:] {
			param = strings.TrimSpace(strings.ToLower(param))
			v, ok := strings.CutPrefix(param, "q=")
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f < 0 || f > 1 {
				// Invalid qualities clamp to 1.0 rather than dropping the entry.
				f = 1.0
			}
			q = f
		}

		switch mediaType {
		case "text/event-stream":
			streamQ = q
		case "application/json":
			jsonQ = q
		}
	}

	return streamQ > jsonQ
}
