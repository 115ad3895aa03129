// Package server wires the viewer together: backend client, monitor
// registry, acquisition strategy, renderer, session manager and the
// browser-facing gin router.
//
// Example Usage:
//
//	srv, err := server.NewServer(cfg)
//	go srv.Run(ctx)
//	defer srv.Close()
package server
