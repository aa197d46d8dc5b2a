package reader

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// Labels given to every Flexlatsim record.
const (
	FlexlatsimSourceType     = "POINT"
	FlexlatsimConnectionType = "TRIPLET"
)

const flexlatsimSentinel = "(MM):"

// flexlatsimChannels translates raw Flexlatsim state labels to channel names.
var flexlatsimChannels = map[string]string{
	"AA":         "AA",
	"AP":         "AP",
	"AV0":        "AV0",
	"V0P":        "V0P",
	"V0V0":       "V0V0",
	"pscalar":    "g5",
	"pvector":    "pvector",
	"scalar":     "id",
	"vector":     "gk",
	"dsapcorr":   "dsapcorr",
	"GGCorrTr1":  "GGCorrTr1",
	"GGCorrTr4":  "GGCorrTr4",
	"WICorr1tr1": "WICorr1tr1",
	"WICorr1tr4": "WICorr1tr4",
	"WICorr2tr1": "WICorr2tr1",
	"WICorr2tr4": "WICorr2tr4",
	"WICorr3tr1": "WICorr3tr1",
	"WICorr3tr4": "WICorr3tr4",
}

// flexlatsimRawStates inverts flexlatsimChannels.
var flexlatsimRawStates = func() map[string]string {
	out := make(map[string]string, len(flexlatsimChannels))
	for raw, channel := range flexlatsimChannels {
		out[channel] = raw
	}
	return out
}()

var flexlatsimCategories = map[string]bool{
	"Meson_corr": true,
	"gluinoglue": true,
}

// Bookkeeping labels that share the category of real measurements.
var flexlatsimIgnored = map[string]bool{
	"total_inviter": true,
	"source_t":      true,
	"leveli":        true,
	"levelj":        true,
	"itpropagator":  true,
	"JN1":           true,
	"source":        true,
}

// flexlatsimColumns returns the field positions of the time index and the
// value for a raw state label.
func flexlatsimColumns(state string) (timeIndex, valueIndex int) {
	switch {
	case strings.HasPrefix(state, "GGCorrTr"):
		return 8, 10
	case strings.HasPrefix(state, "WICorr"):
		return 5, 7
	default:
		return 7, 9
	}
}

type flexKey struct {
	stream     string
	trajectory int
	state      string
}

// flexState carries the Flexlatsim scanner across lines. A completed series
// is emitted whenever the trajectory or the state label changes.
type flexState struct {
	stream string
	mass   float64
	report func(error)

	seen map[flexKey]struct{}

	trajectory    int
	hasTrajectory bool
	state         string
	values        []float64
	expected      int
}

func newFlexState(stream string, mass float64, report func(error)) *flexState {
	return &flexState{
		stream: stream,
		mass:   mass,
		report: report,
		seen:   make(map[flexKey]struct{}),
	}
}

// seed marks records already present as seen, so that a repeat is skipped.
func (s *flexState) seed(records []correlator.Record) {
	for _, r := range records {
		raw, ok := flexlatsimRawStates[r.Channel]
		if !ok {
			raw = r.Channel
		}
		s.seen[flexKey{stream: r.StreamName, trajectory: r.CfgIndex, state: raw}] = struct{}{}
	}
}

// step consumes one line and returns a series completed by it, if any.
// A returned error is fatal.
func (s *flexState) step(line string) (*correlator.Record, error) {
	if !strings.HasPrefix(line, flexlatsimSentinel) {
		return nil, nil
	}
	fields := strings.Split(line, ":")
	if len(fields) < 4 || !flexlatsimCategories[fields[2]] || flexlatsimIgnored[fields[3]] {
		return nil, nil
	}
	if strings.Contains(line[len(flexlatsimSentinel):], "(MM)") {
		s.report(merrors.DataQuality(merrors.ErrCorruptLine, "corrupt line found, skipping"))
		return nil, nil
	}

	trajectory, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return nil, merrors.Structuralf(merrors.ErrMalformedLine, "can't read trajectory %q", fields[1])
	}
	state := fields[3]
	if _, ok := flexlatsimChannels[state]; !ok {
		return nil, merrors.Structuralf(merrors.ErrUnknownChannel, "unknown channel %q", state).
			WithContext("channel", state)
	}

	var flushed *correlator.Record
	if !s.hasTrajectory || trajectory != s.trajectory {
		flushed = s.flush()
		s.trajectory, s.hasTrajectory = trajectory, true
	}
	if state != s.state {
		if r := s.flush(); r != nil {
			flushed = r
		}
		s.state = state
	}

	if _, dup := s.seen[flexKey{stream: s.stream, trajectory: trajectory, state: state}]; dup {
		s.report(merrors.DataQualityf(merrors.ErrDuplicateData,
			"possible duplicate data in %q trajectory %d, state %s", s.stream, trajectory, state))
		return flushed, nil
	}

	timeIndex, valueIndex := flexlatsimColumns(state)
	if len(fields) <= valueIndex {
		return nil, merrors.Structuralf(merrors.ErrMalformedLine,
			"expected at least %d fields, got %d", valueIndex+1, len(fields))
	}
	t, err := strconv.Atoi(strings.TrimSpace(fields[timeIndex]))
	if err != nil {
		return nil, merrors.Structuralf(merrors.ErrMalformedLine, "can't read time index %q", fields[timeIndex])
	}
	if t != s.expected {
		return nil, merrors.Structuralf(merrors.ErrTimeIndexOutOfSequence,
			"trajectory %d, state %s inconsistent at time index %d: got %d", trajectory, state, s.expected, t).
			WithContext("trajectory", strconv.Itoa(trajectory)).
			WithContext("channel", state)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[valueIndex]), 64)
	if err != nil {
		return nil, merrors.Structuralf(merrors.ErrMalformedLine, "can't read value %q", fields[valueIndex])
	}

	s.values = append(s.values, v)
	s.expected++
	return flushed, nil
}

// finish returns the series still being accumulated at end of input.
func (s *flexState) finish() *correlator.Record {
	return s.flush()
}

func (s *flexState) flush() *correlator.Record {
	defer func() {
		s.values = nil
		s.expected = 0
	}()
	if len(s.values) == 0 {
		return nil
	}

	s.seen[flexKey{stream: s.stream, trajectory: s.trajectory, state: s.state}] = struct{}{}
	return &correlator.Record{
		StreamName:     s.stream,
		CfgIndex:       s.trajectory,
		SourceType:     FlexlatsimSourceType,
		ConnectionType: FlexlatsimConnectionType,
		Channel:        flexlatsimChannels[s.state],
		ValenceMass:    s.mass,
		Correlator:     correlator.Real(s.values),
	}
}

// AppendFlexlatsim parses a Flexlatsim log from r into an open builder
// without freezing it, so that several logs can make up one ensemble.
// Trajectories already present in b for the same stream and state are
// reported as duplicates and skipped.
func AppendFlexlatsim(b *correlator.Builder, r io.Reader, name string, opts Options) error {
	if b.Frozen() {
		return merrors.Ingestion(merrors.ErrFrozen, "can't load extra data to a frozen collection").
			WithContext("source", b.Source())
	}
	if opts.ValenceMass == nil {
		return merrors.Structural(merrors.ErrMissingMass, "Flexlatsim logs need a valence mass").
			WithContext("source", name)
	}

	b.MergeMetadata(opts.Metadata)
	b.Metadata().AddValenceMass(*opts.ValenceMass)

	diag := newDiagnostics(FormatFlexlatsim, name, opts)
	lineNo := 0
	state := newFlexState(opts.StreamName, *opts.ValenceMass, func(err error) { diag.warn(err, lineNo) })
	state.seed(b.Records())

	add := func(record *correlator.Record) error {
		if record == nil {
			return nil
		}
		if err := b.Append(*record); err != nil {
			return errors.Wrapf(err, "%s:%d", name, lineNo)
		}
		diag.appended()
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	for scanner.Scan() {
		lineNo++
		record, err := state.step(scanner.Text())
		if err != nil {
			return errors.Wrapf(err, "%s:%d", name, lineNo)
		}
		if err := add(record); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return merrors.IO(err, name)
	}
	return add(state.finish())
}

// ParseFlexlatsim reads a Flexlatsim log from r and returns the frozen
// ensemble. opts.ValenceMass must be set.
func ParseFlexlatsim(r io.Reader, name string, opts Options) (*correlator.Ensemble, error) {
	start := time.Now()
	b := newBuilder(FormatFlexlatsim, name, Options{Logger: opts.Logger})
	if err := AppendFlexlatsim(b, r, name, opts); err != nil {
		return nil, err
	}
	return finish(b, newDiagnostics(FormatFlexlatsim, name, opts), start)
}

// ReadFlexlatsim reads the Flexlatsim log at path.
func ReadFlexlatsim(path string, opts Options) (*correlator.Ensemble, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, merrors.IO(err, path)
	}
	defer f.Close()
	return ParseFlexlatsim(f, path, opts)
}
