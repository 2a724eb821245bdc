package catalog

import (
	"strconv"
	"strings"

	"nolcrawler/pkg/errors"
)

// Era is the policy regime selected by the semester identifier. It
// decides the slot alphabet, the row column layout, the credit parsing
// rule and the empty-integer sentinel, so that no other code compares
// semester numbers directly.
type Era int

const (
	// EraLegacy covers semesters before ROC year 99
	EraLegacy Era = iota
	// EraModern covers semesters from ROC year 99 on
	EraModern
)

// modernEraYear is the first ROC year of the modern regime: the term
// the listing switched to comma-delimited slots, fractional credits
// and the extra class column.
const modernEraYear = 99

// columnLayout maps record fields to cell indices of one listing
// revision. The legacy listing has no class column, so everything
// from the title on sits one cell earlier.
type columnLayout struct {
	serial     int
	deptName   int
	class      int // -1 when the layout has no class column
	title      int
	credit     int
	courseCode int
	selCode    int
	instructor int
	coSelect   int
	schedule   int
	mark       int
	comment    int
	platform   int
}

var (
	modernColumns = columnLayout{
		serial:     0,
		deptName:   1,
		class:      3,
		title:      4,
		credit:     5,
		courseCode: 6,
		selCode:    8,
		instructor: 9,
		coSelect:   10,
		schedule:   11,
		mark:       13,
		comment:    14,
		platform:   15,
	}
	legacyColumns = columnLayout{
		serial:     0,
		deptName:   1,
		class:      -1,
		title:      3,
		credit:     4,
		courseCode: 5,
		selCode:    7,
		instructor: 8,
		coSelect:   9,
		schedule:   10,
		mark:       12,
		comment:    13,
		platform:   14,
	}
)

// slot alphabets in canonical order; legacy ranges expand along this
// order and the "10" slot is a single token in both
var (
	legacySlots = []string{"0", "1", "2", "3", "4", "@", "5", "6", "7", "8", "9", "10", "A", "B", "C", "D"}
	modernSlots = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "A", "B", "C", "D"}
)

// EraForSemester resolves the era policy from a semester identifier
// such as "97-2" or "104-1".
func EraForSemester(semester string) (Era, error) {
	yearStr, _, found := strings.Cut(semester, "-")
	if !found {
		return EraLegacy, errors.NewConfiguration("malformed semester identifier "+semester, nil)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return EraLegacy, errors.NewConfiguration("malformed semester identifier "+semester, err)
	}
	if year >= modernEraYear {
		return EraModern, nil
	}
	return EraLegacy, nil
}

// columns returns the cell layout of the era's listing revision
func (e Era) columns() columnLayout {
	if e == EraModern {
		return modernColumns
	}
	return legacyColumns
}

// slotAlphabet returns the ordered time-slot alphabet of the era
func (e Era) slotAlphabet() []string {
	if e == EraModern {
		return modernSlots
	}
	return legacySlots
}

// slotIndex returns the alphabet position of a token, or -1
func (e Era) slotIndex(token string) int {
	for i, s := range e.slotAlphabet() {
		if s == token {
			return i
		}
	}
	return -1
}

// emptyIntSentinel is the value an empty integer cell maps to
func (e Era) emptyIntSentinel() int {
	if e == EraModern {
		return 0
	}
	return -1
}
