package utility

import (
	"fmt"
	"strings"
	"time"
)

// FormatDate renders t according to a named preset or a token pattern.
// Supported tokens: YYYY YY MM M DD D HH H mm m ss s SSS. Double-letter
// tokens are zero-padded; unknown tokens pass through literally.
func FormatDate(t time.Time, format string) string {
	switch format {
	case "", "ISO":
		return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	case "timestamp":
		return fmt.Sprintf("%d", t.UnixMilli())
	case "unix":
		return fmt.Sprintf("%d", t.Unix())
	case "date-only":
		return t.Format("2006-01-02")
	case "time-only":
		return t.Format("15:04:05")
	case "local":
		return t.Local().Format("2006-01-02 15:04:05")
	case "utc":
		return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
	}
	return formatPattern(t, format)
}

// patternTokens ordered longest-first so the scanner prefers the longest
// match at each position.
var patternTokens = []struct {
	token  string
	render func(t time.Time) string
}{
	{"YYYY", func(t time.Time) string { return fmt.Sprintf("%04d", t.Year()) }},
	{"SSS", func(t time.Time) string { return fmt.Sprintf("%03d", t.Nanosecond()/1e6) }},
	{"YY", func(t time.Time) string { return fmt.Sprintf("%02d", t.Year()%100) }},
	{"MM", func(t time.Time) string { return fmt.Sprintf("%02d", int(t.Month())) }},
	{"DD", func(t time.Time) string { return fmt.Sprintf("%02d", t.Day()) }},
	{"HH", func(t time.Time) string { return fmt.Sprintf("%02d", t.Hour()) }},
	{"mm", func(t time.Time) string { return fmt.Sprintf("%02d", t.Minute()) }},
	{"ss", func(t time.Time) string { return fmt.Sprintf("%02d", t.Second()) }},
	{"M", func(t time.Time) string { return fmt.Sprintf("%d", int(t.Month())) }},
	{"D", func(t time.Time) string { return fmt.Sprintf("%d", t.Day()) }},
	{"H", func(t time.Time) string { return fmt.Sprintf("%d", t.Hour()) }},
	{"m", func(t time.Time) string { return fmt.Sprintf("%d", t.Minute()) }},
	{"s", func(t time.Time) string { return fmt.Sprintf("%d", t.Second()) }},
}

func formatPattern(t time.Time, pattern string) string {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		matched := false
		for _, pt := range patternTokens {
			if strings.HasPrefix(pattern[i:], pt.token) {
				b.WriteString(pt.render(t))
				i += len(pt.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

// dateShift builds an add/subtract function over one calendar unit. The
// optional second argument is an output format.
func dateShift(sign int, unit string) Func {
	return func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		amount, err := intArg(args, 1)
		if err != nil {
			return nil, err
		}
		amount *= sign

		var shifted time.Time
		switch unit {
		case "minutes":
			shifted = t.Add(time.Duration(amount) * time.Minute)
		case "hours":
			shifted = t.Add(time.Duration(amount) * time.Hour)
		case "days":
			shifted = t.AddDate(0, 0, amount)
		case "weeks":
			shifted = t.AddDate(0, 0, amount*7)
		case "months":
			shifted = t.AddDate(0, amount, 0)
		case "years":
			shifted = t.AddDate(amount, 0, 0)
		}
		return FormatDate(shifted, optionalString(args, 2, "ISO")), nil
	}
}

func startOf(t time.Time, unit string) time.Time {
	switch unit {
	case "day":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case "week":
		// ISO week starts on Monday
		offset := (int(t.Weekday()) + 6) % 7
		d := t.AddDate(0, 0, -offset)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case "year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	}
	return t
}

func endOf(t time.Time, unit string) time.Time {
	switch unit {
	case "day":
		return startOf(t, "day").AddDate(0, 0, 1).Add(-time.Millisecond)
	case "week":
		return startOf(t, "week").AddDate(0, 0, 7).Add(-time.Millisecond)
	case "month":
		return startOf(t, "month").AddDate(0, 1, 0).Add(-time.Millisecond)
	case "year":
		return startOf(t, "year").AddDate(1, 0, 0).Add(-time.Millisecond)
	}
	return t
}

func boundaryFunc(which func(time.Time, string) time.Time, unit string) Func {
	return func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		return FormatDate(which(t, unit), optionalString(args, 1, "ISO")), nil
	}
}

func registerDateFuncs(r *Registry) {
	reg(r, "date", "now", "Current instant", func(args []interface{}) (interface{}, error) {
		return FormatDate(time.Now(), optionalString(args, 0, "ISO")), nil
	}, Param{Name: "format", Type: "string", Default: "ISO"})

	reg(r, "date", "today", "Today at midnight", func(args []interface{}) (interface{}, error) {
		return FormatDate(startOf(time.Now(), "day"), optionalString(args, 0, "date-only")), nil
	}, Param{Name: "format", Type: "string", Default: "date-only"})

	reg(r, "date", "timestamp", "Current unix milliseconds", func(args []interface{}) (interface{}, error) {
		return time.Now().UnixMilli(), nil
	})

	for _, unit := range []string{"minutes", "hours", "days", "weeks", "months", "years"} {
		capitalized := strings.ToUpper(unit[:1]) + unit[1:]
		reg(r, "date", "add"+capitalized, "Add "+unit+" to a date", dateShift(1, unit),
			Param{Name: "date", Type: "date", Required: true},
			Param{Name: "amount", Type: "number", Required: true},
			Param{Name: "format", Type: "string", Default: "ISO"})
		reg(r, "date", "subtract"+capitalized, "Subtract "+unit+" from a date", dateShift(-1, unit),
			Param{Name: "date", Type: "date", Required: true},
			Param{Name: "amount", Type: "number", Required: true},
			Param{Name: "format", Type: "string", Default: "ISO"})
	}

	for _, unit := range []string{"day", "week", "month", "year"} {
		capitalized := strings.ToUpper(unit[:1]) + unit[1:]
		reg(r, "date", "startOf"+capitalized, "Start of the "+unit, boundaryFunc(startOf, unit),
			Param{Name: "date", Type: "date", Required: true},
			Param{Name: "format", Type: "string", Default: "ISO"})
		reg(r, "date", "endOf"+capitalized, "End of the "+unit, boundaryFunc(endOf, unit),
			Param{Name: "date", Type: "date", Required: true},
			Param{Name: "format", Type: "string", Default: "ISO"})
	}

	reg(r, "date", "format", "Format a date with preset or pattern", func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		return FormatDate(t, optionalString(args, 1, "ISO")), nil
	}, Param{Name: "date", Type: "date", Required: true},
		Param{Name: "format", Type: "string", Default: "ISO"})

	reg(r, "date", "getDayOfWeek", "Day of week (0=Sunday)", func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		return int(t.Weekday()), nil
	}, Param{Name: "date", Type: "date", Required: true})

	reg(r, "date", "getDayOfWeekName", "Day of week name", func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		return t.Weekday().String(), nil
	}, Param{Name: "date", Type: "date", Required: true})

	reg(r, "date", "getMonthName", "Month name", func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		return t.Month().String(), nil
	}, Param{Name: "date", Type: "date", Required: true})

	reg(r, "date", "getWeekNumber", "ISO week number", func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		_, week := t.ISOWeek()
		return week, nil
	}, Param{Name: "date", Type: "date", Required: true})

	reg(r, "date", "getDaysInMonth", "Number of days in the month", func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		return startOf(t, "month").AddDate(0, 1, -1).Day(), nil
	}, Param{Name: "date", Type: "date", Required: true})

	reg(r, "date", "isWeekend", "Saturday or Sunday", func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		wd := t.Weekday()
		return wd == time.Saturday || wd == time.Sunday, nil
	}, Param{Name: "date", Type: "date", Required: true})

	reg(r, "date", "isWeekday", "Monday through Friday", func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday, nil
	}, Param{Name: "date", Type: "date", Required: true})

	reg(r, "date", "isLeapYear", "Gregorian leap year", func(args []interface{}) (interface{}, error) {
		t, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		y := t.Year()
		return y%4 == 0 && (y%100 != 0 || y%400 == 0), nil
	}, Param{Name: "date", Type: "date", Required: true})

	reg(r, "date", "getAge", "Whole years between a birth date and now", func(args []interface{}) (interface{}, error) {
		birth, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		age := now.Year() - birth.Year()
		if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
			age--
		}
		return age, nil
	}, Param{Name: "birthdate", Type: "date", Required: true})

	reg(r, "date", "daysBetween", "Whole days between two dates", func(args []interface{}) (interface{}, error) {
		a, err := timeArg(args, 0)
		if err != nil {
			return nil, err
		}
		b, err := timeArg(args, 1)
		if err != nil {
			return nil, err
		}
		days := int(startOf(b, "day").Sub(startOf(a, "day")).Hours() / 24)
		if days < 0 {
			days = -days
		}
		return days, nil
	}, Param{Name: "from", Type: "date", Required: true},
		Param{Name: "to", Type: "date", Required: true})
}
