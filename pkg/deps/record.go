// SPDX-License-Identifier: MPL-2.0

package deps

// Record holds the dependencies fetched by one or more fetch phases. The
// zero Record means nothing was fetched.
type Record struct {
	fetched []Dependency
}

// Add records d as fetched.
func (r *Record) Add(d Dependency) {
	r.fetched = append(r.fetched, d)
}

// Merge appends every dependency of other.
func (r *Record) Merge(other Record) {
	r.fetched = append(r.fetched, other.fetched...)
}

// Len returns the number of recorded dependencies.
func (r *Record) Len() int {
	return len(r.fetched)
}

// Collect returns the recorded dependencies and empties the record, so a
// second Collect without new fetches returns an empty slice.
func (r *Record) Collect() []Dependency {
	out := r.fetched
	r.fetched = nil
	if out == nil {
		return []Dependency{}
	}
	return out
}
