package correlator

// Merge builds a new open collection from several frozen ones, for example
// the per-file ensembles of one logical run ingested in parallel. Metadata
// is merged field by field under the first-write-wins rule, with conflicts
// logged. Records keep the usual length check, so ensembles of different
// time extents cannot be merged.
func Merge(source string, ensembles []*Ensemble, opts ...BuilderOption) (*Builder, error) {
	b := NewBuilder(source, opts...)
	for _, e := range ensembles {
		if e == nil {
			continue
		}
		b.MergeMetadata(e.meta)
		for _, r := range e.records {
			if err := b.Append(r); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}
