package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"nolcrawler/helpers"
	"nolcrawler/pkg/errors"
)

// RedirectProber issues a request with redirects disabled and reports
// the response status and Location header. The listing's course pages
// link to the CEIBA platform through a redirecting gateway; following
// the redirect is the only way to learn the platform id.
type RedirectProber interface {
	ProbeRedirect(ctx context.Context, url string) (status int, location string, err error)
}

// CEIBA redirect targets the probe recognizes
const (
	ceibaLoginPrefix  = "https://ceiba.ntu.edu.tw/login_test.php"
	ceibaCoursePrefix = "https://ceiba.ntu.edu.tw/course/"
)

// change-status marker images; new.gif is decoration, not a status
var markerStatus = map[string]string{
	"images/cancel.gif": "停開",
	"images/add.gif":    "加開",
	"images/chg.gif":    "異動",
}

var neutralMarkers = map[string]bool{
	"images/new.gif": true,
}

// ExtractCourse maps one listing row onto a Course. The era selects
// the cell layout and the numeric parsing rules; the prober resolves
// the CEIBA cross-reference when the row links one.
func ExtractCourse(ctx context.Context, era Era, row *goquery.Selection, prober RedirectProber) (Course, error) {
	layout := era.columns()
	cells := row.ChildrenFiltered("td")
	if cells.Length() <= layout.platform {
		return Course{}, errors.New(errors.ErrorTypeExtraction, "extractor",
			fmt.Sprintf("row has %d cells, want at least %d", cells.Length(), layout.platform+1), nil)
	}

	course := Course{
		SerialNo:   cellText(cells.Eq(layout.serial)),
		DeptName:   cellText(cells.Eq(layout.deptName)),
		Title:      linkText(cells.Eq(layout.title)),
		CourseCode: cellText(cells.Eq(layout.courseCode)),
		SelCode:    cellText(cells.Eq(layout.selCode)),
		Instructor: linkText(cells.Eq(layout.instructor)),
	}
	if layout.class >= 0 {
		course.Class = cellText(cells.Eq(layout.class))
	}

	var err error
	if course.DeptCode, err = linkedID(cells.Eq(layout.title), "dpt_code"); err != nil {
		return Course{}, err
	}
	if course.InstructorID, err = linkedID(cells.Eq(layout.instructor), "teacher_id"); err != nil {
		return Course{}, err
	}

	if course.Credit, err = parseCredit(era, cellText(cells.Eq(layout.credit))); err != nil {
		return Course{}, err
	}
	if course.CoSelect, err = parseIntCell(era, cellText(cells.Eq(layout.coSelect))); err != nil {
		return Course{}, err
	}

	course.ScheduleText = cellText(cells.Eq(layout.schedule))
	if course.Schedule, err = DecodeSchedule(era, course.ScheduleText); err != nil {
		return Course{}, err
	}

	if course.Mark, err = rawMarkup(cells.Eq(layout.mark)); err != nil {
		return Course{}, err
	}
	if course.Comment, err = rawMarkup(cells.Eq(layout.comment)); err != nil {
		return Course{}, err
	}

	if course.ChangeStatus, err = changeStatus(row); err != nil {
		return Course{}, err
	}

	if href, ok := linkHref(cells.Eq(layout.platform)); ok {
		if course.PlatformID, err = resolvePlatformID(ctx, prober, href); err != nil {
			return Course{}, err
		}
	}

	return course, nil
}

// cellText returns the cell's visible text with the non-breaking
// placeholder stripped; empty cells normalize to "".
func cellText(cell *goquery.Selection) string {
	return helpers.CleanCellText(cell.Text())
}

// linkHref returns the target of the cell's anchor, if it has one
func linkHref(cell *goquery.Selection) (string, bool) {
	anchor := cell.ChildrenFiltered("a").First()
	if anchor.Length() == 0 {
		return "", false
	}
	return anchor.Attr("href")
}

// linkText returns the anchor text when the cell is a link, otherwise
// the plain cell text.
func linkText(cell *goquery.Selection) string {
	anchor := cell.ChildrenFiltered("a").First()
	if anchor.Length() == 0 {
		return cellText(cell)
	}
	return helpers.CleanCellText(anchor.Text())
}

// linkedID recovers a cross-reference id from the query portion of the
// cell's anchor. No anchor means no id; an anchor without the expected
// parameter is a malformed cross-reference.
func linkedID(cell *goquery.Selection, param string) (*string, error) {
	href, ok := linkHref(cell)
	if !ok {
		return nil, nil
	}
	id, ok := helpers.QueryParam(href, param)
	if !ok {
		return nil, errors.New(errors.ErrorTypeExtraction, "extractor",
			fmt.Sprintf("link %q has no %s parameter", href, param), nil)
	}
	return &id, nil
}

// rawMarkup renders the cell subtree as markup, as stored for the
// fields downstream consumers re-parse themselves.
func rawMarkup(cell *goquery.Selection) (string, error) {
	markup, err := goquery.OuterHtml(cell)
	if err != nil {
		return "", errors.New(errors.ErrorTypeExtraction, "extractor", "rendering cell markup", err)
	}
	return markup, nil
}

// parseCredit reads the credit-hours cell: integer in the legacy era,
// fractional from the modern era on. The branch is on the era, never
// on the cell content.
func parseCredit(era Era, text string) (float64, error) {
	if era == EraModern {
		if text == "" {
			return float64(era.emptyIntSentinel()), nil
		}
		credit, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, errors.New(errors.ErrorTypeExtraction, "extractor",
				fmt.Sprintf("malformed credit %q", text), err)
		}
		return credit, nil
	}
	n, err := parseIntCell(era, text)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

// parseIntCell reads an integer cell, mapping the empty cell to the
// era's sentinel rather than failing.
func parseIntCell(era Era, text string) (int, error) {
	if text == "" {
		return era.emptyIntSentinel(), nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.New(errors.ErrorTypeExtraction, "extractor",
			fmt.Sprintf("malformed integer cell %q", text), err)
	}
	return n, nil
}

// changeStatus derives the cancelled/added/modified tag from marker
// images anywhere in the row. The markers are mutually exclusive;
// an unrecognized marker image is an extraction error.
func changeStatus(row *goquery.Selection) (string, error) {
	status := ""
	var statusErr error
	row.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, ok := img.Attr("src")
		if !ok || !strings.HasPrefix(src, "images/") || neutralMarkers[src] {
			return true
		}
		tag, known := markerStatus[src]
		if !known {
			statusErr = errors.New(errors.ErrorTypeExtraction, "extractor",
				fmt.Sprintf("unrecognized marker image %q", src), nil)
			return false
		}
		if status != "" && status != tag {
			statusErr = errors.New(errors.ErrorTypeExtraction, "extractor",
				fmt.Sprintf("conflicting marker images %q and %q", status, tag), nil)
			return false
		}
		status = tag
		return true
	})
	return status, statusErr
}

// resolvePlatformID follows the CEIBA gateway link. The gateway is
// expected to redirect; an OK or not-found answer means the course has
// no platform entry, any other non-redirect status is fatal.
func resolvePlatformID(ctx context.Context, prober RedirectProber, link string) (*string, error) {
	// the gateway redirects http to https with an extra round trip
	if strings.HasPrefix(link, "http://") {
		link = "https://" + strings.TrimPrefix(link, "http://")
	}

	status, location, err := prober.ProbeRedirect(ctx, link)
	if err != nil {
		return nil, errors.NewNetwork("ceiba", "probing platform link", err)
	}
	switch status {
	case http.StatusFound:
	case http.StatusOK, http.StatusNotFound:
		return nil, nil
	default:
		return nil, errors.NewNetwork("ceiba",
			fmt.Sprintf("HTTP status %d (not %d)", status, http.StatusFound), nil)
	}

	switch {
	case strings.HasPrefix(location, ceibaLoginPrefix):
		csn, ok := helpers.QueryParam(location, "csn")
		if !ok {
			return nil, errors.New(errors.ErrorTypeExtraction, "extractor",
				fmt.Sprintf("login redirect %q has no csn parameter", location), nil)
		}
		return &csn, nil
	case strings.HasPrefix(location, ceibaCoursePrefix):
		id, err := helpers.GetSplitPart(location, "/", 4)
		if err != nil {
			return nil, errors.New(errors.ErrorTypeExtraction, "extractor",
				fmt.Sprintf("course redirect %q has no id segment", location), err)
		}
		return &id, nil
	default:
		return nil, errors.New(errors.ErrorTypeExtraction, "extractor",
			fmt.Sprintf("unexpected CEIBA URL %q", location), nil)
	}
}
