// Package errors provides error code constants for meson-analysis.
// Error codes are organized by category for consistent handling and lookup.
package errors

// -----------------------------------------------------------------------------
// Structural Error Codes
// -----------------------------------------------------------------------------
// The input itself is malformed. These abort the parse.

const (
	// ErrMalformedFilename indicates a configuration or document filename that
	// does not follow the expected grammar.
	ErrMalformedFilename = "MALFORMED_FILENAME"

	// ErrUnknownChannel indicates a raw channel label with no translation.
	ErrUnknownChannel = "UNKNOWN_CHANNEL"

	// ErrTimeIndexOutOfSequence indicates a time slice arriving out of order
	// within a trajectory/channel block.
	ErrTimeIndexOutOfSequence = "TIME_INDEX_OUT_OF_SEQUENCE"

	// ErrRepresentationMismatch indicates that the compiled-in representation
	// and the representation named in a configuration filename disagree.
	ErrRepresentationMismatch = "REPRESENTATION_MISMATCH"

	// ErrMalformedLine indicates a data line whose fields cannot be parsed.
	ErrMalformedLine = "MALFORMED_LINE"

	// ErrMalformedDocument indicates an XML document that cannot be decoded
	// or lacks the expected structure.
	ErrMalformedDocument = "MALFORMED_DOCUMENT"

	// ErrMissingConfiguration indicates a data line seen before any
	// configuration was read.
	ErrMissingConfiguration = "MISSING_CONFIGURATION"

	// ErrMissingMass indicates a measurement without a valence mass where one
	// is required.
	ErrMissingMass = "MISSING_MASS"
)

// -----------------------------------------------------------------------------
// Ingestion-State Error Codes
// -----------------------------------------------------------------------------
// The collection was used incorrectly. These are programmer errors.

const (
	// ErrFrozen indicates an append to a frozen collection.
	ErrFrozen = "FROZEN"

	// ErrAlreadyFrozen indicates a second Freeze of the same builder.
	ErrAlreadyFrozen = "ALREADY_FROZEN"

	// ErrLengthMismatch indicates a correlator whose length differs from the
	// collection's established length.
	ErrLengthMismatch = "LENGTH_MISMATCH"

	// ErrAmbiguousSelection indicates selection criteria that leave more than
	// one source type, connection type, channel or valence mass.
	ErrAmbiguousSelection = "AMBIGUOUS_SELECTION"

	// ErrInvalidCriteria indicates an unknown field or a value of the wrong type.
	ErrInvalidCriteria = "INVALID_CRITERIA"

	// ErrEmptyCollection indicates NT was requested from an empty collection.
	ErrEmptyCollection = "EMPTY_COLLECTION"

	// ErrEmptySelection indicates criteria that matched nothing where a dense
	// array was requested.
	ErrEmptySelection = "EMPTY_SELECTION"

	// ErrComplexData indicates a real-valued view was requested of complex data.
	ErrComplexData = "COMPLEX_DATA"
)

// -----------------------------------------------------------------------------
// Data-Quality Codes
// -----------------------------------------------------------------------------
// Never returned from a parse. Logged under the "code" field.

const (
	// ErrDuplicateData indicates a configuration or channel seen twice.
	ErrDuplicateData = "DUPLICATE_DATA"

	// ErrMetadataConflict indicates a repeated metadata value that differs
	// from the first one recorded.
	ErrMetadataConflict = "METADATA_CONFLICT"

	// ErrCorruptLine indicates a line that was skipped.
	ErrCorruptLine = "CORRUPT_LINE"

	// ErrUnknownElement indicates an XML element the reader does not handle.
	ErrUnknownElement = "UNKNOWN_ELEMENT"

	// ErrNTMismatch indicates the declared lattice time extent differs from
	// the correlator length.
	ErrNTMismatch = "NT_MISMATCH"

	// ErrUnequalCounts indicates channels with different numbers of
	// observations.
	ErrUnequalCounts = "UNEQUAL_COUNTS"

	// ErrNcMismatch indicates a configuration Nc that differs from the
	// valence gauge group.
	ErrNcMismatch = "NC_MISMATCH"
)

// -----------------------------------------------------------------------------
// Configuration and IO Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = "CONFIG_NOT_FOUND"

	// ErrConfigParseFailed indicates the configuration file could not be parsed.
	ErrConfigParseFailed = "CONFIG_PARSE_FAILED"

	// ErrConfigInvalid indicates configuration values are invalid.
	ErrConfigInvalid = "CONFIG_INVALID"

	// ErrConfigWriteFailed indicates the configuration file could not be written.
	ErrConfigWriteFailed = "CONFIG_WRITE_FAILED"

	// ErrUnknownFormat indicates no reader is registered under a format name.
	ErrUnknownFormat = "UNKNOWN_FORMAT"

	// ErrFormatAlreadyRegistered indicates a reader name collision.
	ErrFormatAlreadyRegistered = "FORMAT_ALREADY_REGISTERED"

	// ErrInputUnreadable indicates an input file or directory that could not
	// be opened or read.
	ErrInputUnreadable = "INPUT_UNREADABLE"

	// ErrMetricsWriteFailed indicates the metrics exposition could not be
	// gathered or written.
	ErrMetricsWriteFailed = "METRICS_WRITE_FAILED"
)
