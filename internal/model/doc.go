// Package model defines shared data types used across the tracker.
//
// Conventions:
//   - Prices: float64 in the quote currency (USD)
//   - Changes: float64 percentage points (2.1 = +2.1%)
//   - IDs: opaque strings assigned by the API (asset ids are slugs such as "bitcoin")
//   - Timestamps: time.Time, UTC
package model
