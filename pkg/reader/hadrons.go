package reader

import (
	"encoding/xml"
	"io/fs"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// Labels given to every Hadrons record.
const (
	HadronsSourceType     = "DEFAULT_SEMWALL"
	HadronsConnectionType = "TRIPLET"
)

var cfgSuffixPattern = regexp.MustCompile(`([0-9]+)\.xml$`)

// xmlNode is a generic element tree. Hadrons documents name channels by
// element tag, so they can't be decoded into fixed structs.
type xmlNode struct {
	XMLName xml.Name
	Content string    `xml:",chardata"`
	Nodes   []xmlNode `xml:",any"`
}

func (n xmlNode) tag() string { return n.XMLName.Local }

func (n xmlNode) text() string { return strings.TrimSpace(n.Content) }

// parseComplexPair reads a value written as "(re,im)".
func parseComplexPair(s string) (complex128, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(s), "()"), ",")
	if len(parts) != 2 {
		return 0, merrors.Structuralf(merrors.ErrMalformedDocument, "expected (re,im), got %q", s)
	}
	re, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, merrors.Structuralf(merrors.ErrMalformedDocument, "bad real part in %q", s)
	}
	im, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, merrors.Structuralf(merrors.ErrMalformedDocument, "bad imaginary part in %q", s)
	}
	return complex(re, im), nil
}

func complexValues(n xmlNode) ([]complex128, error) {
	values := make([]complex128, 0, len(n.Nodes))
	for _, elem := range n.Nodes {
		v, err := parseComplexPair(elem.Content)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// hadronsDoc scans the body of one document. The body is the first child of
// the root element.
type hadronsDoc struct {
	stream   string
	cfgIndex int
	meta     *correlator.Metadata
	report   func(error)
}

// mres documents hold a mass element followed by one element per channel.
func (d *hadronsDoc) mres(body xmlNode) ([]correlator.Record, error) {
	var (
		records  []correlator.Record
		mass     float64
		haveMass bool
	)
	for _, elem := range body.Nodes {
		if elem.tag() == "mass" {
			m, err := strconv.ParseFloat(elem.text(), 64)
			if err != nil {
				return nil, merrors.Structuralf(merrors.ErrMalformedDocument, "can't read mass %q", elem.text())
			}
			mass, haveMass = m, true
			d.meta.AddValenceMass(m)
			continue
		}
		if !haveMass {
			return nil, merrors.Structuralf(merrors.ErrMissingMass,
				"channel %s appears before any mass element", elem.tag())
		}

		values, err := complexValues(elem)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, merrors.Structuralf(merrors.ErrMalformedDocument, "channel %s has no values", elem.tag())
		}
		records = append(records, d.record(elem.tag(), mass, values))
	}
	return records, nil
}

// ptll documents hold correlator entries, each naming a source and sink
// gamma structure.
func (d *hadronsDoc) ptll(body xmlNode) ([]correlator.Record, error) {
	mass := math.NaN()
	if m, ok := d.meta.FermionMass.Get(); ok {
		mass = m
	}

	var records []correlator.Record
	for _, entry := range body.Nodes {
		var (
			source, sink string
			values       []complex128
		)
		for _, elem := range entry.Nodes {
			switch elem.tag() {
			case "gamma_src":
				source = elem.text()
			case "gamma_snk":
				sink = elem.text()
			case "corr":
				v, err := complexValues(elem)
				if err != nil {
					return nil, err
				}
				values = append(values, v...)
			default:
				d.report(merrors.DataQualityf(merrors.ErrUnknownElement,
					"element <%s> not understood", elem.tag()))
			}
		}
		if len(values) == 0 {
			return nil, merrors.Structuralf(merrors.ErrMalformedDocument,
				"correlator %s_%s has no values", source, sink)
		}
		records = append(records, d.record(source+"_"+sink, mass, values))
	}
	return records, nil
}

func (d *hadronsDoc) record(channel string, mass float64, values []complex128) correlator.Record {
	return correlator.Record{
		StreamName:     d.stream,
		CfgIndex:       d.cfgIndex,
		SourceType:     HadronsSourceType,
		ConnectionType: HadronsConnectionType,
		Channel:        channel,
		ValenceMass:    mass,
		Correlator:     correlator.Complex(values),
	}
}

func decodeBody(fsys fs.FS, name string) (xmlNode, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return xmlNode{}, merrors.IO(err, name)
	}
	defer f.Close()

	var root xmlNode
	if err := xml.NewDecoder(f).Decode(&root); err != nil {
		return xmlNode{}, merrors.Wrap(err, merrors.ErrMalformedDocument, merrors.CategoryStructural,
			"can't decode XML document")
	}
	if len(root.Nodes) == 0 {
		return xmlNode{}, merrors.Structuralf(merrors.ErrMalformedDocument,
			"root element <%s> is empty", root.tag())
	}
	return root.Nodes[0], nil
}

// ReadHadronsFS reads every mres and pt_ll document in dir of fsys. Other
// entries, including subdirectories, are ignored.
func ReadHadronsFS(fsys fs.FS, dir string, opts Options) (*correlator.Ensemble, error) {
	return readHadrons(fsys, dir, dir, opts)
}

// ReadHadrons reads the Hadrons output directory at dir.
func ReadHadrons(dir string, opts Options) (*correlator.Ensemble, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, merrors.IO(err, dir)
	}
	if !info.IsDir() {
		return nil, merrors.IO(errors.Errorf("%s is not a directory", dir), dir)
	}
	return readHadrons(os.DirFS(dir), ".", dir, opts)
}

func readHadrons(fsys fs.FS, dir, source string, opts Options) (*correlator.Ensemble, error) {
	start := time.Now()
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, merrors.IO(err, source)
	}

	stream := opts.StreamName
	if stream == "" {
		stream = DefaultHadronsStream
	}

	b := newBuilder(FormatHadrons, source, opts)
	diag := newDiagnostics(FormatHadrons, source, opts)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		isMres := strings.HasPrefix(name, "mres")
		if !isMres && !strings.HasPrefix(name, "pt_ll") {
			continue
		}

		m := cfgSuffixPattern.FindStringSubmatch(name)
		if m == nil {
			return nil, merrors.Structuralf(merrors.ErrMalformedFilename,
				"can't find a configuration index in %q", name).
				WithContext("filename", name)
		}
		cfgIndex, _ := strconv.Atoi(m[1])

		body, err := decodeBody(fsys, path.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "%s", path.Join(source, name))
		}

		doc := &hadronsDoc{
			stream:   stream,
			cfgIndex: cfgIndex,
			meta:     b.Metadata(),
			report:   func(err error) { diag.warn(errors.Wrapf(err, "%s", name), 0) },
		}
		var records []correlator.Record
		if isMres {
			records, err = doc.mres(body)
		} else {
			records, err = doc.ptll(body)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s", path.Join(source, name))
		}

		for _, r := range records {
			if err := b.Append(r); err != nil {
				return nil, errors.Wrapf(err, "%s", path.Join(source, name))
			}
			diag.appended()
		}
	}

	return finish(b, diag, start)
}
