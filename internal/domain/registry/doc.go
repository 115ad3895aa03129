// Package registry keeps the list of monitors the operator can choose from.
//
// The Manager fetches GET /monitors through a Lister and holds the latest
// successful result as an immutable snapshot. Each refresh replaces the
// snapshot wholesale. A failed refresh keeps the previous list, since a
// stale list is more useful than an empty one.
//
// Refresh policies:
//   - one-shot: Start(ctx, 0)
//   - periodic: Start(ctx, 2*time.Second)
//
// The stop function returned by Start waits for the loop to exit; after it
// returns the snapshot never changes again.
//
// Example Usage:
//
//	reg := registry.NewManager(backendClient, log)
//	stop := reg.Start(ctx, cfg.Registry.RefreshInterval)
//	defer stop()
//	monitors := reg.Snapshot()
package registry
