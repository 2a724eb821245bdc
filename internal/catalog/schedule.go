package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"nolcrawler/pkg/errors"
)

// officeSentinel is the classroom placeholder meaning "ask the
// department office". A stray leading parenthetical replaces the
// classroom of every entry only when all of them carry this value.
const officeSentinel = "請洽系所辦"

// wildcardSlot marks "variable/arranged time" in legacy schedules
const wildcardSlot = "*"

var weekdays = map[rune]bool{
	'一': true, '二': true, '三': true, '四': true,
	'五': true, '六': true, '日': true,
}

type decodeState int

const (
	// stateDay expects one weekday symbol, tolerating a leading
	// parenthetical which goes to the stray side buffer
	stateDay decodeState = iota
	// stateTime accumulates time-slot tokens until a parenthesis opens
	stateTime
	// stateRoom accumulates classroom text across nested parentheses
	stateRoom
)

// scheduleDecoder walks the schedule text character by character. All
// mutable decode state lives here rather than in shared locals.
type scheduleDecoder struct {
	era  Era
	text string // original input, kept for error reporting
	in   []rune
	pos  int

	state decodeState
	day   string
	slots []string
	room  strings.Builder
	depth int // classroom parenthesis nesting

	token strings.Builder // modern era: token between delimiters
	ranged bool           // legacy era: dash seen, range open

	stray      strings.Builder // parenthetical text seen before a day symbol
	strayDepth int

	entries []ScheduleEntry
}

// DecodeSchedule turns the visible text of a schedule cell into the
// ordered (day, slots, classroom) entries it encodes. The era selects
// the token alphabet and the delimiter rules. Malformed input fails
// with a decode error carrying the original text, except for the
// tolerated shapes documented on the individual states.
func DecodeSchedule(era Era, text string) ([]ScheduleEntry, error) {
	d := &scheduleDecoder{
		era:  era,
		text: text,
		in:   []rune(stripWeekPrefix(text)),
	}

	for d.pos < len(d.in) {
		r := d.in[d.pos]
		if unicode.IsSpace(r) {
			d.pos++
			continue
		}
		if d.strayDepth > 0 {
			d.consumeStray(r)
			d.pos++
			continue
		}

		var err error
		switch d.state {
		case stateDay:
			err = d.consumeDay(r)
		case stateTime:
			err = d.consumeTime(r)
		case stateRoom:
			d.consumeRoom(r)
		}
		if err != nil {
			return nil, err
		}
		d.pos++
	}

	// input ran out inside an unbalanced classroom: keep what we have
	// and skip the clean-state check below
	if d.state == stateRoom && d.depth > 0 {
		d.finishEntry()
		return d.reattachStray(), nil
	}

	clean := d.state == stateDay && d.strayDepth == 0 &&
		d.day == "" && len(d.slots) == 0 && d.room.Len() == 0 && d.depth == 0
	if !clean {
		return nil, errors.NewDecode(d.text, "input ended in unexpected state")
	}

	// nothing but a parenthetical: surface it as a classroom-only entry
	if len(d.entries) == 0 && d.stray.Len() > 0 {
		return []ScheduleEntry{{Classroom: d.stray.String()}}, nil
	}
	return d.reattachStray(), nil
}

// stripWeekPrefix removes a leading week-range annotation of the form
// 第<digits, spaces, commas>週. The calendar weeks it encodes are not
// part of the output.
func stripWeekPrefix(text string) string {
	runes := []rune(text)
	i := 0
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	if i >= len(runes) || runes[i] != '第' {
		return text
	}
	for j := i + 1; j < len(runes); j++ {
		r := runes[j]
		if r == '週' {
			return string(runes[j+1:])
		}
		if !unicode.IsDigit(r) && r != ',' && r != '，' && !unicode.IsSpace(r) {
			return text
		}
	}
	return text
}

// consumeStray captures parenthetical text into the side buffer,
// retaining nested parentheses verbatim but not the outer pair.
func (d *scheduleDecoder) consumeStray(r rune) {
	switch r {
	case '(':
		d.strayDepth++
		d.stray.WriteRune('(')
	case ')':
		d.strayDepth--
		if d.strayDepth > 0 {
			d.stray.WriteRune(')')
		}
	default:
		d.stray.WriteRune(r)
	}
}

func (d *scheduleDecoder) consumeDay(r rune) error {
	if r == '(' {
		d.strayDepth = 1
		return nil
	}
	if !weekdays[r] {
		return errors.NewDecode(d.text, fmt.Sprintf("unexpected character %q, want weekday", r))
	}
	d.day = string(r)
	d.state = stateTime
	return nil
}

func (d *scheduleDecoder) consumeTime(r rune) error {
	if d.era == EraModern {
		return d.consumeTimeModern(r)
	}
	return d.consumeTimeLegacy(r)
}

// consumeTimeModern handles the strict grammar: tokens are delimited
// by commas or the opening classroom parenthesis, one character each
// except the literal "10".
func (d *scheduleDecoder) consumeTimeModern(r rune) error {
	switch r {
	case ',':
		return d.flushToken()
	case '(':
		if err := d.flushToken(); err != nil {
			return err
		}
		d.state = stateRoom
		d.depth = 1
		return nil
	default:
		if !strings.ContainsRune("0123456789ABCD", r) {
			return errors.NewDecode(d.text, fmt.Sprintf("invalid time slot character %q", r))
		}
		d.token.WriteRune(r)
		return nil
	}
}

func (d *scheduleDecoder) flushToken() error {
	if d.token.Len() == 0 {
		return nil
	}
	tok := d.token.String()
	d.token.Reset()
	if tok != "10" && (len(tok) != 1 || d.era.slotIndex(tok) < 0) {
		return errors.NewDecode(d.text, fmt.Sprintf("invalid time slot %q", tok))
	}
	d.slots = append(d.slots, tok)
	return nil
}

// consumeTimeLegacy handles the loose grammar: commas carry no
// information, a dash opens a range closed by the next token, and *
// stands alone for "time arranged separately".
func (d *scheduleDecoder) consumeTimeLegacy(r rune) error {
	switch r {
	case ',':
		return nil
	case '(':
		if d.ranged {
			return errors.NewDecode(d.text, "unterminated slot range")
		}
		d.state = stateRoom
		d.depth = 1
		return nil
	case '-':
		if len(d.slots) == 0 {
			return errors.NewDecode(d.text, "slot range with no start")
		}
		if d.ranged {
			return errors.NewDecode(d.text, "slot range opened twice")
		}
		d.ranged = true
		return nil
	case '*':
		if d.ranged {
			return errors.NewDecode(d.text, "slot range closed by wildcard")
		}
		d.slots = append(d.slots, wildcardSlot)
		return nil
	}

	tok := string(r)
	if d.era.slotIndex(tok) < 0 {
		return errors.NewDecode(d.text, fmt.Sprintf("invalid time slot %q", r))
	}
	// Slots are listed in alphabet order within an entry, so a literal
	// 0 can never follow 1: the pair always reads as the tenth slot.
	if next, at := d.peek(); r == '1' && next == '0' {
		tok = "10"
		d.pos = at
	}
	if d.ranged {
		if err := d.expandRange(tok); err != nil {
			return err
		}
		d.ranged = false
		return nil
	}
	d.slots = append(d.slots, tok)
	return nil
}

// peek returns the next non-space rune and its position without
// consuming it, or (0, -1) at end of input.
func (d *scheduleDecoder) peek() (rune, int) {
	for i := d.pos + 1; i < len(d.in); i++ {
		if !unicode.IsSpace(d.in[i]) {
			return d.in[i], i
		}
	}
	return 0, -1
}

// expandRange appends every alphabet symbol after the previous slot up
// to and including end.
func (d *scheduleDecoder) expandRange(end string) error {
	alphabet := d.era.slotAlphabet()
	from := d.era.slotIndex(d.slots[len(d.slots)-1])
	to := d.era.slotIndex(end)
	if from < 0 {
		return errors.NewDecode(d.text, "slot range starting at wildcard")
	}
	if to <= from {
		return errors.NewDecode(d.text, fmt.Sprintf("descending slot range to %q", end))
	}
	d.slots = append(d.slots, alphabet[from+1:to+1]...)
	return nil
}

func (d *scheduleDecoder) consumeRoom(r rune) {
	switch r {
	case '(':
		d.depth++
		d.room.WriteRune('(')
	case ')':
		d.depth--
		if d.depth == 0 {
			d.finishEntry()
		} else {
			d.room.WriteRune(')')
		}
	default:
		d.room.WriteRune(r)
	}
}

func (d *scheduleDecoder) finishEntry() {
	d.entries = append(d.entries, ScheduleEntry{
		Day:       d.day,
		Slots:     d.slots,
		Classroom: d.room.String(),
	})
	d.day = ""
	d.slots = nil
	d.room.Reset()
	d.depth = 0
	d.state = stateDay
}

// reattachStray moves the side buffer into the entries when every
// classroom is the department-office placeholder; otherwise the buffer
// is discarded.
func (d *scheduleDecoder) reattachStray() []ScheduleEntry {
	if d.stray.Len() == 0 || len(d.entries) == 0 {
		return d.entries
	}
	for _, e := range d.entries {
		if e.Classroom != officeSentinel {
			return d.entries
		}
	}
	replacement := d.stray.String()
	for i := range d.entries {
		d.entries[i].Classroom = replacement
	}
	return d.entries
}
