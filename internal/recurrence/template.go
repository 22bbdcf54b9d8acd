package recurrence

import (
	"strconv"
	"strings"
	"time"

	"recurd/internal/calendar"
)

// RenderTemplate substitutes placeholder tokens in template text. Matching
// is literal, every token is optional and unknown tokens are left as-is.
//
//	{{date}}        ISO date
//	{{date_short}}  dd.MM
//	{{weekday}}     full lowercase weekday name
//	{{week}}        week number within the year
//	{{month}}       full month name
//	{{month_short}} abbreviated month name
//	{{year}}        four-digit year
//	{{counter}}     instance number, unpadded
func RenderTemplate(text string, date time.Time, instanceNumber int) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	r := strings.NewReplacer(
		"{{date}}", calendar.FormatDate(date),
		"{{date_short}}", date.Format("02.01"),
		"{{weekday}}", calendar.WeekdayName(int(date.Weekday())),
		"{{week}}", strconv.Itoa(calendar.WeekNumber(date)),
		"{{month}}", date.Month().String(),
		"{{month_short}}", date.Format("Jan"),
		"{{year}}", strconv.Itoa(date.Year()),
		"{{counter}}", strconv.Itoa(instanceNumber),
	)
	return r.Replace(text)
}
