// Package correlator holds the measurement collection that every reader
// populates and every analysis consumes.
//
// A Record is one correlator (a time series over Euclidean time slices) for
// one channel on one configuration, tagged with its provenance: the Monte
// Carlo stream, the configuration index, the source and connection types, the
// channel, and the valence mass.
//
// Collections have two lifetimes. A Builder is open: readers Append records
// to it and fill in its Metadata while scanning an input. Freeze converts the
// Builder into an Ensemble, an immutable snapshot sorted by stream,
// configuration index, source type and connection type. Only an Ensemble can
// be queried, with Get, GetArray and GetComplexArray, and only an Ensemble
// can be checked with IsConsistent.
//
// All records in a collection share one correlator length, the lattice time
// extent NT. Append rejects anything else.
package correlator
