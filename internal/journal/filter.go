package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/and161185/reflekt/internal/errs"
	"github.com/and161185/reflekt/internal/model"
)

// DateLayout is the format of archive filter dates.
const DateLayout = "2006-01-02"

// ParseFilter builds a filter from raw query parameters. Dates are read in loc;
// the end date is widened by one day so its whole calendar day is included.
func ParseFilter(query, from, to string, loc *time.Location) (model.Filter, error) {
	if loc == nil {
		loc = time.Local
	}
	f := model.Filter{Query: strings.TrimSpace(query)}
	if from = strings.TrimSpace(from); from != "" {
		d, err := time.ParseInLocation(DateLayout, from, loc)
		if err != nil {
			return model.Filter{}, fmt.Errorf("%w: from %q", errs.ErrInvalidFilter, from)
		}
		f.CreatedFrom = d
	}
	if to = strings.TrimSpace(to); to != "" {
		d, err := time.ParseInLocation(DateLayout, to, loc)
		if err != nil {
			return model.Filter{}, fmt.Errorf("%w: to %q", errs.ErrInvalidFilter, to)
		}
		f.CreatedUntil = d.AddDate(0, 0, 1)
	}
	return f, nil
}

// NormalizePage clamps page numbers below 1 to 1.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Offset returns the row offset of a 1-based page.
func Offset(page, pageSize int) int {
	return (NormalizePage(page) - 1) * pageSize
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
