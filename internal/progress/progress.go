// Package progress defines the progress-listener fan-out used by
// transfers to report part-level activity, grounded on the teacher's
// internal/progress package (a small listener interface plus no-op
// and UI-backed implementations) but generalised from the teacher's
// upload/download-tab-specific callbacks to a single typed event.
package progress

// Event describes one part-level progress update.
type Event struct {
	Bucket      string
	Key         string
	PartNumber  int32
	BytesDone   int64
	BytesTotal  int64
	Phase       string // "initiate", "part", "complete"
}

// Listener receives progress events. Implementations must not block;
// slow listeners should buffer internally.
type Listener interface {
	OnProgress(Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(Event)

// OnProgress implements Listener.
func (f ListenerFunc) OnProgress(e Event) { f(e) }

// Multi fans one event out to several listeners, grounded on the
// teacher's pattern of broadcasting to both the event bus and the
// active progress-bar implementation simultaneously.
type Multi struct {
	Listeners []Listener
}

// OnProgress implements Listener, forwarding to every registered listener.
func (m Multi) OnProgress(e Event) {
	for _, l := range m.Listeners {
		if l != nil {
			l.OnProgress(e)
		}
	}
}

// Noop is a Listener that discards every event; the facade uses it
// when the caller registers none.
var Noop Listener = ListenerFunc(func(Event) {})
