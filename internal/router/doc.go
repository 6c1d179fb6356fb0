// Package router is the in-process publish/subscribe layer between the push
// channel and the rest of the tracker.
//
// Inbound frames are JSON objects of the form
//
//	{"type": "price_update", "data": {...}, "timestamp": "2024-01-15T10:00:00Z"}
//
// DecodeFrame splits a frame into its topic and raw payload; the typed
// decoders (DecodePriceUpdate, DecodePriceBatch, DecodeAlertTriggered) turn
// payloads into model values. The Dispatcher fans a published Message out to
// every handler registered on its topic, synchronously and in registration
// order.
//
// GrowableBuffer is the queue used wherever a producer must never block on a
// slow consumer: between the transport read loop and the dispatch loop, and
// between the canonical store and its change-feed readers.
package router
