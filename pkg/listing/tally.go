package listing

// Tally counts listings per source, splitting native listings into paid and free.
type Tally struct {
	Native     int `json:"native"`
	NativePaid int `json:"native_paid"`
	NativeFree int `json:"native_free"`
	PartnerA   int `json:"partner_a"`
	PartnerB   int `json:"partner_b"`
}

// Add counts one listing.
func (t *Tally) Add(l Listing) {
	switch l.Source() {
	case SourcePartnerA:
		t.PartnerA++
	case SourcePartnerB:
		t.PartnerB++
	default:
		t.Native++
		if l.ProductCount() > 0 {
			t.NativePaid++
		} else {
			t.NativeFree++
		}
	}
}

// Merge adds the counts of other into t.
func (t *Tally) Merge(other Tally) {
	t.Native += other.Native
	t.NativePaid += other.NativePaid
	t.NativeFree += other.NativeFree
	t.PartnerA += other.PartnerA
	t.PartnerB += other.PartnerB
}

// Total returns the number of listings counted.
func (t Tally) Total() int {
	return t.Native + t.PartnerA + t.PartnerB
}

// Of returns the count for one source.
func (t Tally) Of(src Source) int {
	switch src {
	case SourcePartnerA:
		return t.PartnerA
	case SourcePartnerB:
		return t.PartnerB
	default:
		return t.Native
	}
}

// Count tallies a slice of listings.
func Count(listings []Listing) Tally {
	var t Tally
	for _, l := range listings {
		t.Add(l)
	}
	return t
}

// CountSource returns how many listings belong to src.
func CountSource(listings []Listing, src Source) int {
	n := 0
	for _, l := range listings {
		if l.Source() == src {
			n++
		}
	}
	return n
}
