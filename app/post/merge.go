package post

// KeySet is a set of normalized post URLs.
type KeySet map[string]struct{}

func Keys(candidates []Candidate) KeySet {
	keys := make(KeySet, len(candidates))
	for _, c := range candidates {
		keys.Add(c.URL)
	}
	return keys
}

func (s KeySet) Add(rawURL string) {
	s[NormalizeURL(rawURL)] = struct{}{}
}

func (s KeySet) Has(rawURL string) bool {
	_, ok := s[NormalizeURL(rawURL)]
	return ok
}

// Merge keeps every primary candidate as-is and appends the secondary
// candidates whose URL is not already present.
func Merge(primary, secondary []Candidate) []Candidate {
	merged := make([]Candidate, 0, len(primary)+len(secondary))
	merged = append(merged, primary...)

	seen := Keys(primary)
	for _, c := range secondary {
		if c.URL == "" || seen.Has(c.URL) {
			continue
		}
		seen.Add(c.URL)
		merged = append(merged, c)
	}

	return merged
}

// Unseen returns the candidates whose URL is not in known, first occurrence
// winning among duplicates.
func Unseen(candidates []Candidate, known KeySet) []Candidate {
	seen := make(KeySet, len(known))
	for k := range known {
		seen[k] = struct{}{}
	}

	var fresh []Candidate
	for _, c := range candidates {
		if c.URL == "" || seen.Has(c.URL) {
			continue
		}
		seen.Add(c.URL)
		fresh = append(fresh, c)
	}

	return fresh
}
