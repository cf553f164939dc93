// Package vectorindex stores one embedding per solution record in its own
// SQLite database and ranks records against a query by cosine similarity.
//
// The embedded document is derived from the record's problem statement and
// error messages; titles and solutions are excluded so the vector captures
// the failure, not the fix. Similarity is computed in Go over little-endian
// float32 blobs, which keeps the index portable across both SQLite drivers.
package vectorindex
