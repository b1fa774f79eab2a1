package ttl

import "strconv"

// Unit lengths in seconds.
const (
	Minute = 60
	Hour   = 60 * Minute
	Day    = 24 * Hour
	Year   = 365 * Day
)

// Table maps named-duration tokens to seconds.
// It is built once at init and must not be modified.
var Table = buildTable()

func buildTable() map[string]int {
	t := make(map[string]int, 1+364+23+59)
	t["1y"] = Year
	for n := 1; n < 365; n++ {
		t[strconv.Itoa(n)+"d"] = n * Day
	}
	for n := 1; n < 24; n++ {
		t[strconv.Itoa(n)+"h"] = n * Hour
	}
	for n := 1; n < 60; n++ {
		t[strconv.Itoa(n)+"m"] = n * Minute
	}
	return t
}

// Lookup returns the seconds for a single token and whether it was found.
func Lookup(token string) (int, bool) {
	s, ok := Table[token]
	return s, ok
}
