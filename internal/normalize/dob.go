package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// DOB repairs a date of birth into MM/DD/YYYY:
//  1. Separators "-" and "." become "/"
//  2. The date must have three numeric parts, exactly one of them a 4-digit year
//  3. If the first remaining part exceeds 12 and the second does not, they are swapped
//  4. Month must be 1-12 and day 1-31
//
// A trailing time component ("1992-07-05T00:00:00", "7/5/1992 0:00") is
// ignored. When the value cannot be repaired the trimmed input is returned
// with ok false.
func DOB(raw string) (string, bool) {
	orig := strings.TrimSpace(raw)
	s := orig
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	s = strings.NewReplacer("-", "/", ".", "/").Replace(s)

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return orig, false
	}

	year := -1
	var rest []int
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return orig, false
		}
		if len(p) == 4 {
			if year >= 0 {
				return orig, false
			}
			year = n
			continue
		}
		if len(p) > 2 || len(p) == 0 {
			return orig, false
		}
		rest = append(rest, n)
	}
	if year < 0 || len(rest) != 2 {
		return orig, false
	}

	month, day := rest[0], rest[1]
	if month > 12 && day <= 12 {
		month, day = day, month
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return orig, false
	}
	return fmt.Sprintf("%02d/%02d/%04d", month, day, year), true
}
