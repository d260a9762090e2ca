// Package cmdb implements the layered configuration-database lookup engine.
//
// A CMDB instance resolves per-host and per-environment data from a cascade
// of YAML sources. Each lookup walks an ordered candidate path list (most
// specific first), expands bracketed references against the data merged so
// far, loads and templates each source file, and folds the results together
// under a deterministic merge policy. Loaded files are memoized for the
// lifetime of the instance, including files that turned out to be absent.
package cmdb
