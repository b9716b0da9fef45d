// Package filter derives filter grammars from records and compiles filter
// expressions into document-store predicate trees.
//
// GRAMMAR:
//
// Generate walks a schema.Record and produces a Grammar with one tagged
// Node per filterable field:
//
//	NodeOperators  scalar or enum field, filtered with an operator set
//	NodeNested     nested record, filtered with its own Grammar
//
// Every scalar kind offers Eq, Neq, Gt, Gte, Lt, Lte, In, Nin and Exists.
// String fields also offer RegEx. Enum fields offer the standard set with
// values restricted to the enum. List fields filter like their element.
// Fields of unknown kind are not filterable.
//
// Only the top-level grammar of an entity (ForEntity) accepts the And and
// Or combinators. Each takes a list of expressions of the same grammar.
//
// PREDICATE TREE:
//
// Compile produces a bson.M in MongoDB query-document shape:
//
//	{"age": {"$gte": 5, "$lte": 10}}                   multiple operators are ANDed
//	{"address.city": {"$eq": "Berlin"}}                nested paths are dotted
//	{"$or": [{"age": {"$lt": 18}}, {"tags": {...}}]}   combinators
//
// The compiler dispatches on node tags, never on key names, and rejects
// expressions that do not conform to the grammar. And and Or are
// combinators only in a top-level grammar; in nested grammars they are
// ordinary field names.
//
// RegEx patterns must be valid RE2 (Go regexp) syntax. Patterns a PCRE
// store would accept but RE2 does not, such as lookarounds and
// backreferences, are rejected at compile time so that every compiled
// predicate runs the same way on the reference store and on a MongoDB
// store.
package filter
