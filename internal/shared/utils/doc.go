// Package utils holds input validation shared by the HTTP and websocket
// APIs.
package utils
