// Package market implements the Entity Reconciler.
//
// The Store holds canonical state for the session:
//   - Assets, created only by explicit fetches and updated by price pushes
//   - Alerts, whose status follows the alert lifecycle (see package alert)
//   - Favorites, edited optimistically through FavoritesTarget
//
// Price deltas for unknown assets are dropped. Known assets take the pushed
// price and 24h change unconditionally, last write wins.
//
// Every change is published to Watch subscribers through an unbounded
// buffer, so a slow consumer never blocks a reconciler write.
package market
