package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Iterator records the iterator name under the key "iterator".
func Iterator(name string) slog.Attr {
	return slog.String("iterator", name)
}

// EntityID records the entity identifier under the key "entity_id".
func EntityID(id string) slog.Attr {
	return slog.String("entity_id", id)
}

// Field records the schedule field name under the key "field".
func Field(name string) slog.Attr {
	return slog.String("field", name)
}

// Mode records an iterator run mode under the key "mode".
func Mode(mode string) slog.Attr {
	return slog.String("mode", mode)
}

// State records a lifecycle state under the key "state".
func State(state string) slog.Attr {
	return slog.String("state", state)
}

// Pool records an executor pool name under the key "pool".
func Pool(name string) slog.Attr {
	return slog.String("pool", name)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Delay records how late an entity was picked up under the key "delay".
func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

// DueAt records the due time of an entity under the key "due_at".
func DueAt(t time.Time) slog.Attr {
	return slog.Time("due_at", t)
}
