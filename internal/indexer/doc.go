// Package indexer owns the bleve index handles: open-or-create, buffered
// writes, commit-and-refresh, and the process-wide registry that guarantees
// at most one live handle per physical index location.
//
// Writes staged through a Handle are invisible to searches until
// CommitAndRefresh executes the pending batch. This is intentional write
// buffering: bulk re-indexing appends O(rows) batch entries and pays for a
// single refresh at the end.
//
// The identity key of a row doubles as the bleve document ID, so
// delete-by-identity is an exact-match document deletion by construction.
package indexer
