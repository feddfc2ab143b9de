// Package wlproto defines the slice of the Wayland core protocol that the
// data-device engine speaks: object ids, 24.8 fixed-point coordinates, the
// drag-and-drop action bitset, and one Go type per request and per event of
// wl_data_device_manager, wl_data_device, wl_data_source and wl_data_offer.
//
// Wire encoding is not handled here. A transport implements Conn and turns
// Requests into messages; in the other direction it decodes messages into the
// Event variants below and hands them to manager.Manager.Dispatch, in arrival
// order, on a single dispatch goroutine.
package wlproto
