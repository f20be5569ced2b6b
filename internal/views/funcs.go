package views

import (
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/entdecider/entdecider/internal/media"
)

// yearMeanLengthDays is the mean Gregorian year, used as the cutoff for
// relative time labels.
const yearMeanLengthDays = 365.2425

// formatTimedelta renders a second count as a progressive clock label:
// "45", "1:30", "1:01:40". Units only show up once reached, later units
// are zero padded.
func formatTimedelta(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	delta := time.Duration(seconds) * time.Second
	ret := ""
	for _, unit := range []time.Duration{time.Hour, time.Minute} {
		if ret != "" || unit <= delta {
			unitSize := delta / unit
			delta -= unit * time.Duration(unitSize)
			if ret != "" {
				ret += fmt.Sprintf("%02d:", unitSize)
			} else {
				ret += fmt.Sprintf("%d:", unitSize)
			}
		}
	}
	return ret + fmt.Sprintf("%02d", int(delta.Seconds()))
}

type timeUnit struct {
	threshold time.Duration
	name      string
}

var timeSinceUnits = []timeUnit{
	{time.Hour, "hour"},
	{24 * time.Hour, "day"},
	{7 * 24 * time.Hour, "week"},
	{time.Duration(yearMeanLengthDays / 12 * 24 * float64(time.Hour)), "month"},
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// formatTimeSince renders a relative age like "3 days" or "2 months".
// Dates without a time of day compare at day granularity so fresh
// releases say "today" instead of a bogus hour count. Anything outside
// the last year falls back to "2006-01".
func formatTimeSince(date *time.Time) string {
	if date == nil {
		return ""
	}
	now := time.Now()
	missingTime := startOfDay(*date).Equal(*date)
	if missingTime {
		now = startOfDay(now)
	}
	passed := now.Sub(*date)
	maxRel := time.Duration(yearMeanLengthDays * 24 * float64(time.Hour))
	if passed < 0 || maxRel <= passed {
		return date.Format("2006-01")
	}
	var last *timeUnit
	for i := range timeSinceUnits {
		if passed < timeSinceUnits[i].threshold {
			break
		}
		last = &timeSinceUnits[i]
	}
	if last != nil {
		count := int(passed / last.threshold)
		plural := ""
		if count > 1 {
			plural = "s"
		}
		return fmt.Sprintf("%d %s%s", count, last.name, plural)
	}
	if missingTime {
		return "today"
	}
	return "now"
}

// encodeOptions builds a query string from a string map, without the
// leading question mark.
func encodeOptions(opts map[string]string) string {
	values := url.Values{}
	for key, value := range opts {
		values.Set(key, value)
	}
	return values.Encode()
}

func asLink(uri string) template.HTML {
	escaped := template.HTMLEscapeString(uri)
	return template.HTML(`<a href="` + escaped + `">` + escaped + `</a>`)
}

func ternary(b bool, trueStr, falseStr string) string {
	if b {
		return trueStr
	}
	return falseStr
}

func firstAndOnly(list []string) string {
	if len(list) == 1 {
		return list[0]
	}
	return ""
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"timedelta":     formatTimedelta,
		"timeSince":     formatTimeSince,
		"encodeOptions": encodeOptions,
		"asLink":        asLink,
		"ternary":       ternary,
		"firstAndOnly":  firstAndOnly,
		"formatDate": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		},
		"int": func(v any) int {
			switch n := v.(type) {
			case int:
				return n
			case int64:
				return int(n)
			case float64:
				return int(n)
			default:
				return 0
			}
		},
		"playLink": playLink,
		"cardData": func(card *MediaCard, currentURL string) map[string]any {
			return map[string]any{"Card": card, "CurrentURL": currentURL}
		},
	}
}

// playLink builds the deep link the desktop client registers a handler
// for. Playback resumes at the stored progress.
func playLink(e *media.Element) string {
	return "entertainment-decider:///player/play?" + encodeOptions(map[string]string{
		"video_uri": e.URI,
		"start":     strconv.Itoa(e.Progress),
	})
}
