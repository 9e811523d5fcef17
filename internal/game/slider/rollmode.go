package slider

import "strings"

// RollMode selects how handle values define the winning region.
type RollMode string

const (
	// Inside wins when the roll lies between the two handles.
	Inside RollMode = "inside"
	// Outside wins when the roll lies at or beyond either handle.
	Outside RollMode = "outside"
	// Between wins when the roll lies inside either of two sub-ranges defined by four handles.
	Between RollMode = "between"
)

// ParseRollMode normalizes s to a RollMode. Unrecognized input yields Inside.
func ParseRollMode(s string) RollMode {
	mode, _ := parseRollMode(s)
	return mode
}

func parseRollMode(s string) (RollMode, bool) {
	switch RollMode(strings.ToLower(strings.TrimSpace(s))) {
	case Inside:
		return Inside, true
	case Outside:
		return Outside, true
	case Between:
		return Between, true
	default:
		return Inside, false
	}
}

// HandleCount returns the number of active handles for the mode.
func (m RollMode) HandleCount() int {
	if m == Between {
		return 4
	}
	return 2
}

// String returns the mode name.
func (m RollMode) String() string { return string(m) }
