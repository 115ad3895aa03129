// Package view derives what the browser shows from registry, selection
// and renderer state. It holds no state of its own; every change
// re-derives the whole View.
package view
