package testutil

import "fmt"

// IDs returns n record ids of the form prefix-1 ... prefix-n, for seeding an
// engine.FixedGenerator.
//
// An empty prefix defaults to "id".
func IDs(prefix string, n int) []string {
	if prefix == "" {
		prefix = "id"
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return out
}
