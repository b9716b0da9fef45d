// Package docstore is a small SQLite-backed document store that accepts
// predicate trees and sort documents in MongoDB query shape verbatim.
//
// It exists to exercise the wire contract of the filter compiler end to
// end: documents are stored as JSON, and predicates are translated to
// parameterized SQL over json_each so that a condition on an array field
// matches when any element satisfies it.
//
// SUPPORTED OPERATORS:
//
//	$eq $ne $gt $gte $lt $lte   comparison (any element for arrays)
//	$in $nin                    set membership
//	$exists                     presence, including explicit null
//	$regex $options             RE2 pattern, "i" for case-insensitive
//	$and $or                    combinators
//
// A field mapped to a plain value is an equality test. Dotted paths
// address nested objects; paths that step through arrays of objects do
// not match anything. Other operators return ErrUnsupported.
//
// The store only inserts and finds. All queries order by the requested
// sort keys and then by insertion order, so results are deterministic.
package docstore
