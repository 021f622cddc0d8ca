// Package factorytable exposes the set of file extensions registered with
// the BOTW resource factory. Files whose extension is in this table bypass
// the Writer's generic binary-file alignment heuristics unless legacy mode
// is on.
//
// The table shipped here is a schema-correct, representative seed, not the
// authoritative extension list from any particular game release; a caller
// embedding the full table would replace data/botw_resource_factory_info.tsv.
package factorytable

import (
	_ "embed"
	"encoding/csv"
	"strings"
	"sync"
)

//go:embed data/botw_resource_factory_info.tsv
var raw string

var (
	once sync.Once
	set  map[string]struct{}
)

func load() {
	r := csv.NewReader(strings.NewReader(raw))
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	set = make(map[string]struct{})
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if len(record) == 0 || record[0] == "" {
			continue
		}
		set[record[0]] = struct{}{}
	}
}

// Contains reports whether ext is registered with the BOTW resource
// factory. The empty extension is never a member.
func Contains(ext string) bool {
	once.Do(load)
	_, ok := set[ext]
	return ok
}
