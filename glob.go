package sarc

import "github.com/bmatcuk/doublestar/v4"

// Glob returns every named entry in r whose name matches pattern, using
// doublestar's `**`-aware glob syntax. Unnamed entries never match, since
// they have nothing to compare the pattern against.
func (r *Reader) Glob(pattern string) ([]string, error) {
	var out []string
	for f := range r.All() {
		if !f.HasName {
			continue
		}
		ok, err := doublestar.Match(pattern, f.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f.Name)
		}
	}
	return out, nil
}
