// Package ws serves the viewer's push channel at /stream.
//
// Each connected browser receives {"type":"view","view":{...}} on connect
// and after every change to the monitor list, the selection, a screen's
// connection state or a painted frame. Bursts coalesce and pushes are
// spaced by Config.MinInterval.
//
// Inbound messages:
//   - {"type":"select","address":"A1"}  select a monitor
//   - {"type":"clear"}                  stop viewing
//   - {"type":"ping"}                   answered with {"type":"pong"}
//
// Failures are answered with {"type":"error","error":"..."}.
package ws
