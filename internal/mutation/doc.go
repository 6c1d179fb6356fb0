// Package mutation applies optimistic edits to canonical state and undoes
// them when the durable request behind them fails.
//
// Each Mutate call records an edit {ID, EntityID, Previous, AppliedAt} in a
// per-entity log ordered by application, applies the new value immediately,
// and runs the request in the background. Settlement follows these rules:
//
//   - Success: the edit is dropped. Older edits still in flight for the same
//     entity are superseded; if they later fail they write nothing.
//   - Failure of the newest edit: the entity is restored to the edit's Previous.
//   - Failure of an older edit: nothing is written; the next newer edit takes
//     over its Previous, so a later failure of that edit restores the value
//     from before both.
//   - If the entity no longer exists at rollback time, nothing is written.
//
// With V0 -> V1 -> V2 applied by two overlapping edits, a failure of the
// second restores V1, and a subsequent failure of the first restores V0.
package mutation
