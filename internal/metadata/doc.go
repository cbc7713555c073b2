// Package metadata is the dependency and computation engine behind generated
// inter-type declarations.
//
// Every piece of metadata is addressed by an identifier (see package mid).
// Providers compute items for one metadata class each. The Service caches
// items, routes requests to providers and recomputes cached instances when the
// DependencyRegistry reports that something upstream changed.
//
// A typical wiring:
//
//	svc, err := metadata.NewService()
//	if err != nil {
//		return err
//	}
//	if err := svc.RegisterProvider(displayNames); err != nil {
//		return err
//	}
//	deps := svc.Dependencies()
//	_ = deps.RegisterDependency("file:/src/Foo.java", "MID:DisplayName#com.example.Foo")
//
//	item, err := svc.Get("MID:DisplayName#com.example.Foo")  // computed, then cached
//	_ = deps.NotifyDownstream("file:/src/Foo.java")         // recomputed, dependents notified
//
// Notification cascades run depth first on the calling goroutine. A provider
// that asks for its own identifier while computing receives the last cached
// value instead of recursing, and a cascade never revisits an instance that is
// already being propagated.
package metadata
