package attendance

// Classification is the bucket an imported participant lands in, derived from
// their history before the import.
type Classification int

const (
	Normal Classification = iota
	PreviousNoShow
	Blocklisted
)

func (c Classification) String() string {
	switch c {
	case PreviousNoShow:
		return "previous-no-show"
	case Blocklisted:
		return "blocklisted"
	default:
		return "normal"
	}
}

// Classify ranks a blocklist entry above no-show history, and no-show history
// above a clean record.
func Classify(noShowCount int, blocklisted bool) Classification {
	switch {
	case blocklisted:
		return Blocklisted
	case noShowCount > 0:
		return PreviousNoShow
	default:
		return Normal
	}
}
