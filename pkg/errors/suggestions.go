// Package errors provides a suggestions registry for error remediation.
// Maps error codes to suggestions that help users fix their inputs.
package errors

// suggestions maps error codes to remediation hints, most useful first.
var suggestions = map[string][]string{
	ErrMalformedFilename: {
		"Configuration names must look like {run}_{NT}x{NX}x{NY}x{NZ}nc{Nc}[r{REP}][nf{Nf}]b{beta}m{mass}n{index}",
		"Hadrons documents must end in {index}.xml",
	},
	ErrUnknownChannel: {
		"Add the raw label to the Flexlatsim channel table or drop it from the log",
	},
	ErrTimeIndexOutOfSequence: {
		"The log is probably truncated or two runs were concatenated; split it at the reported line",
	},
	ErrRepresentationMismatch: {
		"Check that the measurement binary was compiled for the representation of the ensemble",
	},
	ErrMissingConfiguration: {
		"Data lines must follow an [IO][0]Configuration ... read line",
	},
	ErrMissingMass: {
		"Set valence_mass on the ingestion job",
		"Hadrons mres documents must declare <mass> before the channels",
	},
	ErrLengthMismatch: {
		"All inputs merged into one ensemble must share the lattice time extent",
	},
	ErrAmbiguousSelection: {
		"Narrow the selection with source_type, connection_type, channel and valence_mass",
	},
	ErrUnknownFormat: {
		"Known formats are hirep, hadrons and flexlatsim",
	},
	ErrConfigNotFound: {
		"Run with -init to write a default configuration",
	},
}

// Suggestions returns the registered remediation hints for a code.
func Suggestions(code string) []string {
	hints := suggestions[code]
	if len(hints) == 0 {
		return nil
	}
	out := make([]string, len(hints))
	copy(out, hints)
	return out
}

// AttachSuggestions appends the registered hints for e.Code to e.
func AttachSuggestions(e *MesonError) *MesonError {
	if e == nil {
		return nil
	}
	e.Suggestions = append(e.Suggestions, Suggestions(e.Code)...)
	return e
}
