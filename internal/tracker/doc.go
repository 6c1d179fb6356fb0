// Package tracker wires the synchronization core into one service.
//
// A Service owns the push channel, the dispatcher, the room registry, the
// canonical store and the mutation controllers. Consumers get an explicit
// instance instead of package-level state, so tests can build isolated
// services.
//
// Lifecycle:
//
//	svc := tracker.New(cfg, client, manager, dispatcher)
//	svc.Start(ctx)      // bind handlers, load state, connect, start refresh
//	defer svc.Stop(ctx) // stop refresh, disconnect, drain in-flight edits
package tracker
