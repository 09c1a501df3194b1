package ledger

import (
	"fmt"
	"time"

	"github.com/mmynk/hogar/internal/filter"
)

// WeekLabel returns "YYYY-WW" for an ISO date, where week 01 is the partial week holding
// January 1st and weeks start on Sunday. Unparseable dates yield "".
func WeekLabel(date string) string {
	d, err := time.Parse(filter.DateLayout, date)
	if err != nil {
		return ""
	}
	jan1 := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := d.YearDay() - 1 + int(jan1.Weekday()) + 1
	week := (offset + 6) / 7
	return fmt.Sprintf("%04d-%02d", d.Year(), week)
}
