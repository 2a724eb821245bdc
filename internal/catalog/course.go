// Package catalog implements the course-catalog core: the schedule
// text decoder, the row extractor, the direct-mapped page cache and
// the crawler that ties them to the remote listing.
package catalog

// PageSize is the number of rows the listing serves per page
const PageSize = 15

// ScheduleEntry is one decoded (weekday, time slots, classroom) tuple.
// A course's schedule keeps source document order and is not
// deduplicated.
type ScheduleEntry struct {
	Day       string   `json:"day"`
	Slots     []string `json:"slots"`
	Classroom string   `json:"classroom"`
}

// Course is one record of the listing. Courses are immutable after
// extraction except for Index, which the caller stamps with the
// record's position in the global listing.
type Course struct {
	Index        int             `json:"index"`
	SerialNo     string          `json:"ser_no"`
	DeptName     string          `json:"dpt_name"`
	DeptCode     *string         `json:"dpt_code"`
	Class        string          `json:"class"`
	Title        string          `json:"cou_cname"`
	CourseCode   string          `json:"cou_code"`
	Credit       float64         `json:"credit"`
	SelCode      string          `json:"sel_code"`
	Instructor   string          `json:"tea_cname"`
	InstructorID *string         `json:"tea_id"`
	CoSelect     int             `json:"co_select"`
	ScheduleText string          `json:"schedule_text"`
	Schedule     []ScheduleEntry `json:"schedule"`
	Mark         string          `json:"co_gmark"`
	Comment      string          `json:"comment"`
	ChangeStatus string          `json:"co_chg"`
	PlatformID   *string         `json:"ceiba"`
	NotFound     bool            `json:"not_found,omitempty"`
}

// Page is one fetched batch of exactly PageSize courses, padded with
// not-found placeholders when the listing returned fewer rows.
type Page []Course

// NotFoundCourse returns the placeholder used to pad short pages
func NotFoundCourse() Course {
	return Course{NotFound: true}
}
