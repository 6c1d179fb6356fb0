// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single push channel to the dashboard server
//   - Negotiates the transport: websocket first, HTTP long-polling as fallback
//   - Reconnects automatically with a fixed delay, up to a bounded number of attempts
//   - Decodes inbound frames and hands them to the Topic Dispatcher, one at a time
//   - Publishes connection_established on every (re)connect and
//     connection_status on every status change
package connection
