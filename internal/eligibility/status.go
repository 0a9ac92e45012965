package eligibility

// Status is the terminal outcome of a check. The string values are the wire
// format expected by the callback collector.
type Status string

const (
	Eligible    Status = "elegivel"
	NotEligible Status = "nao_elegivel"
)

func (s Status) Valid() bool {
	return s == Eligible || s == NotEligible
}

func (s Status) String() string {
	return string(s)
}
