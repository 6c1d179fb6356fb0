// Package poller implements the periodic refresh component.
//
// The Refresh Poller:
//   - Re-fetches the asset list, alerts and favorites on an interval
//   - Re-fetches details for every asset somebody is watching
//   - Runs fetches concurrently with a bounded limit
//   - Feeds results to the store as the latest full fetch
package poller
