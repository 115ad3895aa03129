// Package types provides the shared data model for the viewer.
//
// Core Types:
//   - MonitorDescriptor: one remote monitor as reported by the registry
//   - MonitorList: ordered registry snapshot, unique by address
//   - Selection: which monitor, if any, is being viewed
//   - ConnState: lifecycle of a per-screen live connection
//   - ScreenStatus: per-screen acquisition and surface state
//
// Request Types:
//   - SelectRequest: REST selection change
//   - WSMessage: browser websocket messages
//
// Example Usage:
//
//	list := types.MonitorList{{Address: "10.0.0.4:51022", User: "alice", Host: "desk1", ScreenCount: 1}}
//	if mon, ok := list.Find("10.0.0.4:51022"); ok {
//	    sel := types.SelectionOf(mon)
//	    fmt.Println(sel.Address())
//	}
package types
