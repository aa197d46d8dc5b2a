package reader

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// DefaultSourceType labels Hirep rows that don't name their source.
const DefaultSourceType = "DEFAULT_SEMWALL"

// hirepReprs maps the representation codes used in configuration filenames.
var hirepReprs = map[string]string{
	"FUN": "fundamental",
	"SYM": "symmetric",
	"ASY": "antisymmetric",
	"ADJ": "adjoint",
}

var (
	geometryPattern = regexp.MustCompile(`^([0-9]+)x([0-9]+)x([0-9]+)x([0-9]+)`)
	gaugePattern    = regexp.MustCompile(`^([A-Za-z]+)\(([0-9]+)\)$`)
	cfgNamePattern  = regexp.MustCompile(
		`^(?:.*/)?([^/]*)_[0-9]+x[0-9]+x[0-9]+x[0-9]+nc([0-9]+)(?:r([A-Z]+))?(?:nf([0-9]+))?b([0-9]+\.[0-9]+)m(-?[0-9]+\.[0-9]+)n([0-9]+)`)
)

const (
	macrosPrefix   = "[SYSTEM][0]MACROS="
	reprNamePrefix = `-DREPR_NAME="REPR_`
	reprPrefix     = "-DREPR_"
)

// cfgName is the parsed form of a gauge configuration filename.
type cfgName struct {
	run      string
	nc       int
	repr     string // empty when the filename has no r{REP} part
	nf       int
	hasNf    bool
	beta     float64
	mass     float64
	cfgIndex int
}

func parseCfgName(filename string) (cfgName, error) {
	m := cfgNamePattern.FindStringSubmatch(filename)
	if m == nil {
		return cfgName{}, merrors.Structuralf(merrors.ErrMalformedFilename,
			"can't parse configuration filename %q", filename).
			WithContext("filename", filename)
	}

	var c cfgName
	var err error
	c.run = m[1]
	c.nc, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		repr, ok := hirepReprs[m[3]]
		if !ok {
			return cfgName{}, merrors.Structuralf(merrors.ErrMalformedFilename,
				"unknown representation %q in configuration filename", m[3]).
				WithContext("filename", filename)
		}
		c.repr = repr
	}
	if m[4] != "" {
		c.nf, _ = strconv.Atoi(m[4])
		c.hasNf = true
	}
	if c.beta, err = strconv.ParseFloat(m[5], 64); err != nil {
		return cfgName{}, merrors.Wrap(err, merrors.ErrMalformedFilename, merrors.CategoryStructural, "bad beta")
	}
	if c.mass, err = strconv.ParseFloat(m[6], 64); err != nil {
		return cfgName{}, merrors.Wrap(err, merrors.ErrMalformedFilename, merrors.CategoryStructural, "bad mass")
	}
	if c.cfgIndex, err = strconv.Atoi(m[7]); err != nil {
		return cfgName{}, merrors.Wrap(err, merrors.ErrMalformedFilename, merrors.CategoryStructural, "bad configuration index")
	}
	return c, nil
}

type cfgKey struct {
	run      string
	cfgIndex int
}

// hirepState carries the Hirep scanner across lines.
type hirepState struct {
	meta   *correlator.Metadata
	report func(error)

	seen     map[cfgKey]struct{}
	run      string
	cfgIndex int
	haveCfg  bool

	// runRepr is the representation compiled into the measuring code.
	runRepr string
}

func newHirepState(meta *correlator.Metadata, report func(error)) *hirepState {
	return &hirepState{
		meta:   meta,
		report: report,
		seen:   make(map[cfgKey]struct{}),
	}
}

// step consumes one line and returns the measurement it carries, if any.
// A returned error is fatal.
func (s *hirepState) step(line string) (*correlator.Record, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(fields[0], macrosPrefix):
		s.macros(fields)
		return nil, nil
	case fields[0] == "[IO][0]Configuration" && len(fields) >= 3 && fields[2] == "read":
		return nil, s.configuration(strings.TrimSuffix(strings.TrimPrefix(fields[1], "["), "]"))
	case fields[0] == "[MAIN][0]conf":
		return s.row(fields)
	}

	s.metadata(fields)
	return nil, nil
}

func (s *hirepState) macros(fields []string) {
	macros := append([]string{strings.TrimPrefix(fields[0], macrosPrefix)}, fields[1:]...)
	s.runRepr = ""
	for _, macro := range macros {
		switch {
		case strings.HasPrefix(macro, reprNamePrefix):
			repr := strings.ToLower(strings.Trim(strings.TrimPrefix(macro, reprNamePrefix), `"`))
			s.runRepr = repr
			s.keep(s.meta.ValenceRepresentation.Merge("valence_representation", repr))
		case strings.HasPrefix(macro, reprPrefix) && !strings.HasPrefix(macro, "-DREPR_NAME"):
			s.runRepr = strings.ToLower(strings.TrimPrefix(macro, reprPrefix))
		}
	}
}

func (s *hirepState) configuration(filename string) error {
	c, err := parseCfgName(filename)
	if err != nil {
		return err
	}

	if nc, ok := s.meta.Nc.Get(); !ok {
		s.report(merrors.DataQualityf(merrors.ErrNcMismatch,
			"configuration Nc %d can't be checked: no gauge group declared", c.nc))
	} else if nc != c.nc {
		s.report(merrors.DataQualityf(merrors.ErrNcMismatch,
			"configuration Nc %d does not match valence Nc %d", c.nc, nc))
	}

	repr := c.repr
	if repr == "" {
		repr = s.runRepr
	} else if s.runRepr != "" && repr != s.runRepr {
		return merrors.Structuralf(merrors.ErrRepresentationMismatch,
			"representation mismatch between ensemble (%s) and code (%s)", repr, s.runRepr).
			WithContext("filename", filename)
	}

	if repr != "" {
		s.keep(s.meta.DynamicalRepresentation.Merge("dynamical_representation", repr))
	}
	if c.hasNf {
		s.keep(s.meta.Nf.Merge("Nf", c.nf))
	}
	s.keep(s.meta.Beta.Merge("beta", c.beta))
	s.keep(s.meta.DynamicalMass.Merge("dynamical_mass", c.mass))

	key := cfgKey{run: c.run, cfgIndex: c.cfgIndex}
	if _, dup := s.seen[key]; dup {
		s.report(merrors.DataQualityf(merrors.ErrDuplicateData,
			"possible duplicate data in %s trajectory %d", c.run, c.cfgIndex))
	}
	s.seen[key] = struct{}{}

	s.run, s.cfgIndex, s.haveCfg = c.run, c.cfgIndex, true
	return nil
}

func (s *hirepState) metadata(fields []string) {
	switch {
	case fields[0] == "[GEOMETRY][0]Global" || fields[0] == "[GEOMETRY_INIT][0]Global" || fields[0] == "[MAIN][0]global":
		var m []string
		if len(fields) >= 4 {
			m = geometryPattern.FindStringSubmatch(fields[3])
		}
		if m == nil {
			s.report(merrors.DataQuality(merrors.ErrCorruptLine, "can't read lattice geometry"))
			return
		}
		dims := make([]int, 4)
		for i := range dims {
			dims[i], _ = strconv.Atoi(m[i+1])
		}
		s.keep(s.meta.NT.Merge("NT", dims[0]))
		s.keep(s.meta.NX.Merge("NX", dims[1]))
		s.keep(s.meta.NY.Merge("NY", dims[2]))
		s.keep(s.meta.NZ.Merge("NZ", dims[3]))

	case strings.HasPrefix(fields[0], "[MAIN][0]Mass["):
		if len(fields) < 3 {
			s.report(merrors.DataQuality(merrors.ErrCorruptLine, "mass declaration has no value"))
			return
		}
		mass, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			s.report(merrors.DataQualityf(merrors.ErrCorruptLine, "can't read mass %q", fields[2]))
			return
		}
		s.meta.AddValenceMass(mass)

	case len(fields) >= 3 && fields[0] == "[MAIN][0]Fermion" && fields[1] == "representation:":
		repr := strings.ToLower(strings.TrimPrefix(fields[2], "REPR_"))
		s.keep(s.meta.ValenceRepresentation.Merge("valence_representation", repr))

	case len(fields) >= 3 && fields[1] == "group:" && (fields[0] == "[SYSTEM][0]Gauge" || fields[0] == "[MAIN][0]Gauge"):
		m := gaugePattern.FindStringSubmatch(fields[2])
		if m == nil {
			s.report(merrors.DataQualityf(merrors.ErrCorruptLine, "can't read gauge group %q", fields[2]))
			return
		}
		nc, _ := strconv.Atoi(m[2])
		s.keep(s.meta.GroupFamily.Merge("group_family", m[1]))
		s.keep(s.meta.Nc.Merge("Nc", nc))
	}
}

// row parses a data line:
//
//	[MAIN][0]conf #0 mass=0.1 [SOURCE] TRIPLET g5= v0 v1 ...
func (s *hirepState) row(fields []string) (*correlator.Record, error) {
	if !s.haveCfg {
		return nil, merrors.Structural(merrors.ErrMissingConfiguration,
			"measurement found before any configuration was read")
	}
	if len(fields) < 6 || !strings.HasPrefix(fields[2], "mass=") {
		return nil, merrors.Structural(merrors.ErrMalformedLine, "measurement line is too short")
	}

	mass, err := strconv.ParseFloat(strings.TrimPrefix(fields[2], "mass="), 64)
	if err != nil {
		return nil, merrors.Wrap(err, merrors.ErrMalformedLine, merrors.CategoryStructural, "can't read valence mass")
	}

	source := DefaultSourceType
	rest := fields[3:]
	if _, err := strconv.ParseFloat(fields[5], 64); err != nil {
		// Column 5 is the channel, so the source type is explicit.
		source = rest[0]
		rest = rest[1:]
	}
	if len(rest) < 3 {
		return nil, merrors.Structural(merrors.ErrMalformedLine, "measurement line has no values")
	}

	channel := rest[1]
	values := make([]float64, 0, len(rest)-2)
	for _, field := range rest[2:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, merrors.Structuralf(merrors.ErrMalformedLine, "can't read correlator value %q", field)
		}
		values = append(values, v)
	}

	return &correlator.Record{
		StreamName:     s.run,
		CfgIndex:       s.cfgIndex,
		SourceType:     source,
		ConnectionType: rest[0],
		Channel:        channel[:len(channel)-1],
		ValenceMass:    mass,
		Correlator:     correlator.Real(values),
	}, nil
}

func (s *hirepState) keep(err error) {
	if err != nil {
		s.report(err)
	}
}

// ParseHirep reads a Hirep measurement log from r and returns the frozen
// ensemble. name identifies the input in diagnostics.
func ParseHirep(r io.Reader, name string, opts Options) (*correlator.Ensemble, error) {
	start := time.Now()
	b := newBuilder(FormatHirep, name, opts)
	diag := newDiagnostics(FormatHirep, name, opts)

	lineNo := 0
	state := newHirepState(b.Metadata(), func(err error) { diag.warn(err, lineNo) })

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	for scanner.Scan() {
		lineNo++
		record, err := state.step(scanner.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", name, lineNo)
		}
		if record == nil {
			continue
		}
		if err := b.Append(*record); err != nil {
			return nil, errors.Wrapf(err, "%s:%d", name, lineNo)
		}
		diag.appended()
	}
	if err := scanner.Err(); err != nil {
		return nil, merrors.IO(err, name)
	}

	return finish(b, diag, start)
}

// ReadHirep reads the Hirep log at path.
func ReadHirep(path string, opts Options) (*correlator.Ensemble, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, merrors.IO(err, path)
	}
	defer f.Close()
	return ParseHirep(f, path, opts)
}

// maxLineLength bounds a single log line.
const maxLineLength = 16 * 1024 * 1024
