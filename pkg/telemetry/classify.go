package telemetry

// StateClass is the interpretation of a canonical payload value.
type StateClass int

const (
	// Ambiguous means the value matched neither vocabulary and carries no
	// actionable state.
	Ambiguous StateClass = iota
	// Affirmative covers on/true/online style values.
	Affirmative
	// Negative covers off/false/offline style values.
	Negative
)

func (s StateClass) String() string {
	switch s {
	case Affirmative:
		return "affirmative"
	case Negative:
		return "negative"
	default:
		return "ambiguous"
	}
}

// The two vocabularies are disjoint by construction, so no precedence rule
// is needed between them.
var (
	affirmativeValues = map[string]struct{}{
		"1": {}, "on": {}, "true": {}, "online": {},
		"connected": {}, "started": {}, "yes": {}, "active": {},
	}
	negativeValues = map[string]struct{}{
		"0": {}, "off": {}, "false": {}, "offline": {},
		"disconnected": {}, "stopped": {}, "no": {}, "inactive": {},
	}
)

// Classify maps a canonical value to its state class. Values are expected to
// be pre-normalized by Normalize; anything outside the two fixed vocabularies
// is Ambiguous.
func Classify(value string) StateClass {
	if _, ok := affirmativeValues[value]; ok {
		return Affirmative
	}
	if _, ok := negativeValues[value]; ok {
		return Negative
	}
	return Ambiguous
}
