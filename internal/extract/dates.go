package extract

import (
	"regexp"
	"strings"
	"time"
)

// Portuguese month names as they appear in visible bylines.
var ptMonths = map[string]string{
	"janeiro":   "01",
	"fevereiro": "02",
	"março":     "03",
	"marco":     "03",
	"abril":     "04",
	"maio":      "05",
	"junho":     "06",
	"julho":     "07",
	"agosto":    "08",
	"setembro":  "09",
	"outubro":   "10",
	"novembro":  "11",
	"dezembro":  "12",
}

var datePrefixes = []string{
	"publicado em",
	"atualizado em",
	"publicada em",
	"postado em",
	"em",
}

var (
	ptLongDate = regexp.MustCompile(`(\d{1,2}) de ([a-zç]+) de (\d{4})`)
	hourMark   = regexp.MustCompile(`(\d{1,2})h(\d{2})`)
)

// Relative day words resolved against the scrape time.
var relativeDays = []struct {
	word string
	days int
}{
	{"hoje", 0},
	{"ontem", -1},
}

var absoluteLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseDate interprets a textual date in the formats regional portals use:
// ISO-8601, Brazilian dd/mm/yyyy, long-form Portuguese ("12 de março de
// 2026, 14h30"), and the relative words "hoje" and "ontem", which resolve
// against now. The location applies when the value carries no offset.
// The zero time and false mean the value is unparseable; callers must not
// substitute the current time.
func ParseDate(value string, loc *time.Location, now time.Time) (time.Time, bool) {
	text := strings.ToLower(strings.TrimSpace(value))
	if text == "" {
		return time.Time{}, false
	}

	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
		return ts, true
	}

	for _, prefix := range datePrefixes {
		if after, found := strings.CutPrefix(text, prefix+" "); found {
			text = after
			break
		}
	}
	text = strings.Trim(text, " .,")
	text = hourMark.ReplaceAllString(text, "$1:$2")
	text = strings.ReplaceAll(text, " às ", " ")
	text = strings.ReplaceAll(text, ",", "")

	for _, rel := range relativeDays {
		rest, found := strings.CutPrefix(text, rel.word)
		if !found || (rest != "" && !strings.HasPrefix(rest, " ")) {
			continue
		}
		base := now.In(loc).AddDate(0, 0, rel.days)
		day := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, loc)
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return day, true
		}
		if clock, err := time.Parse("15:04", rest); err == nil {
			return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), true
		}
		return time.Time{}, false
	}

	if m := ptLongDate.FindStringSubmatch(text); m != nil {
		if month, ok := ptMonths[m[2]]; ok {
			day := m[1]
			if len(day) == 1 {
				day = "0" + day
			}
			normalized := day + "/" + month + "/" + m[3]
			rest := strings.TrimSpace(strings.Replace(text, m[0], "", 1))
			if rest != "" {
				normalized += " " + rest
			}
			text = normalized
		}
	}

	for _, layout := range absoluteLayouts {
		if ts, err := time.ParseInLocation(layout, text, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
