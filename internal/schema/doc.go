// Package schema derives entity shapes from declarative field layouts.
//
// A layout is an ordered list of named members. A member is either a Field
// (one scalar, enum or list value) or a nested Record. Compose turns a
// layout into a Record, which exposes:
//
//   - three wire types: read, create (<Name>Input) and update (<Name>Update)
//   - a strict validation rule and its update relaxation (ConvertForUpdate)
//   - the flattened list of dotted sortable paths
//
// Descriptors are immutable values. Builders on Field return a new Field,
// so a descriptor shared between two layouts is never changed by either.
// Records memoize their derived validation on first access; they are built
// once at startup and are safe to share between goroutines afterwards.
//
// Validation rules are plain data. NewValidator renders a Rule into a CUE
// expression and checks JSON-compatible documents against it, reporting a
// structured list of violations.
package schema
