package nol

import (
	"context"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"nolcrawler/helpers"
	"nolcrawler/pkg/errors"
)

// semesterSelect is the dropdown the search page renders its semester
// list into; the course count sits in the element right after it.
const semesterSelect = "select#select_sem"

// Semesters returns every semester identifier the service offers
func (c *Client) Semesters(ctx context.Context) ([]string, error) {
	doc, err := c.getDocument(ctx, url.Values{})
	if err != nil {
		return nil, err
	}
	options := doc.Find(semesterSelect + " option")
	if options.Length() == 0 {
		return nil, errors.NewParsing("nol", "no semester dropdown in search page", nil)
	}

	semesters := make([]string, 0, options.Length())
	options.Each(func(_ int, opt *goquery.Selection) {
		if value, ok := opt.Attr("value"); ok {
			semesters = append(semesters, value)
		}
	})
	return semesters, nil
}

// DefaultSemester returns the semester the service preselects
func (c *Client) DefaultSemester(ctx context.Context) (string, error) {
	doc, err := c.getDocument(ctx, url.Values{})
	if err != nil {
		return "", err
	}
	value, ok := doc.Find(semesterSelect + " option[selected]").First().Attr("value")
	if !ok {
		return "", errors.NewParsing("nol", "no preselected semester in search page", nil)
	}
	return value, nil
}

// CourseCount returns the total record count of a semester. An unknown
// semester reports zero courses, not an error.
func (c *Client) CourseCount(ctx context.Context, semester string) (int, error) {
	doc, err := c.getDocument(ctx, url.Values{"current_sem": {semester}})
	if err != nil {
		return 0, err
	}
	box := doc.Find(semesterSelect)
	if box.Length() == 0 {
		return 0, errors.NewParsing("nol", "no semester dropdown in search page", nil)
	}
	text := helpers.CleanCellText(box.Next().Children().First().Text())
	if text == "" {
		return 0, nil
	}
	count, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.NewParsing("nol", "malformed course count "+strconv.Quote(text), err)
	}
	return count, nil
}

// getDocument performs one search request and parses the response
func (c *Client) getDocument(ctx context.Context, extra url.Values) (*goquery.Document, error) {
	body, err := c.get(ctx, extra)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, errors.NewParsing("nol", "parsing search page", err)
	}
	return doc, nil
}
