// Package acquire turns a selected monitor into a flow of encoded frames.
//
// Two strategies implement Strategy:
//   - Stream: one websocket per screen at /ws/{address}/{screen}; every
//     binary message is one complete frame.
//   - Poll: one still-image request per screen per tick, each with a unique
//     cache-busting token.
//
// Acquire returns a Release callback. Every goroutine, timer and connection
// an acquisition creates belongs to it, and Release cancels, closes and
// waits for all of them. When Release returns the Sink is never called again.
// A screen that stops by itself, such as a stream the backend closed, is
// reported once through Sink.Ended. A failed poll is not a stop.
//
// Streamed frames pass through a single-slot latest-wins mailbox, so a slow
// renderer drops stale frames instead of queueing them.
package acquire
