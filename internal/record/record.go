// Package record holds the small set of helpers shared by every component
// that builds a structured log record (session, stats): the common base
// fields, timestamp formatting, and attrs-map conversion. Keeping this in
// one place is what makes "field names are part of the external interface"
// actually enforceable — there is exactly one place a field gets renamed.
package record

import (
	"os/user"
	"time"

	"github.com/nlmon/frr-converge/internal/events"
)

// ISOTimestamp renders a millisecond epoch timestamp as ISO-8601 UTC with
// millisecond precision, the format  requires for every record.
func ISOTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

// CurrentUser resolves the OS username for the "user" field on every
// record, falling back to the N/A sentinel if the lookup fails.
func CurrentUser() string {
	u, err := user.Current()
	if err != nil {
		return events.SentinelNA
	}
	return u.Username
}

// BaseFields returns the event_type/router_name/user/timestamp/monitor_id
// fields common to every record in the stream.
func BaseFields(eventType, routerName, monitorID string) map[string]any {
	return map[string]any{
		"event_type":  eventType,
		"router_name": routerName,
		"user":        CurrentUser(),
		"timestamp":   ISOTimestamp(time.Now().UnixMilli()),
		"monitor_id":  monitorID,
	}
}

// AttrsToMap converts a flat string attrs map into the map[string]any shape
// the JSON log writer expects for nested info objects (trigger_info,
// route_info, netem_info, qdisc_info).
func AttrsToMap(attrs map[string]string) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
