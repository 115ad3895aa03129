// Package http provides the browser-facing REST API of the viewer.
//
// Endpoints:
//   - GET  /                              viewer page
//   - GET  /health                        health and backend status
//   - GET  /api/monitors                  latest monitor list
//   - POST /api/monitors/refresh          refresh the list now
//   - GET  /api/selection                 live session summary
//   - PUT  /api/selection                 select a monitor by address
//   - DELETE /api/selection               stop viewing
//   - GET  /api/view                      composed view
//   - GET  /api/screens/:index/frame      current surface as PNG
//   - GET  /api/screens/:index/thumbnail  scaled surface as PNG
//   - GET  /api/stats                     aggregated statistics
//
// Domain errors map to status codes: unknown monitors and unpainted
// screens are 404, registry and connection failures 502, an open backend
// breaker 503.
package http
