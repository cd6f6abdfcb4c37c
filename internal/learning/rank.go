package learning

import "sort"

type counted struct {
	key   string
	count int
}

// rankCounts orders a frequency map by count descending, then key ascending
func rankCounts(freq map[string]int) []counted {
	out := make([]counted, 0, len(freq))
	for k, v := range freq {
		out = append(out, counted{key: k, count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
