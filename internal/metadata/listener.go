package metadata

// NotificationListener receives change events. upstream is the identifier
// that changed. downstream is the identifier that may now be stale, or "" when
// the listener is a general observer receiving every change.
type NotificationListener interface {
	Notify(upstream, downstream string) error
}

// NotificationListenerFunc adapts a function to NotificationListener.
type NotificationListenerFunc func(upstream, downstream string) error

// Notify calls f(upstream, downstream).
func (f NotificationListenerFunc) Notify(upstream, downstream string) error {
	return f(upstream, downstream)
}
