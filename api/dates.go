package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// releaseDateLayouts are the accepted input formats, tried in order.
var releaseDateLayouts = []string{
	"01/02/2006",
	"02 Jan 2006 15:04:05 GMT",
	http.TimeFormat,
	time.RFC3339,
	"2006-01-02",
}

func parseReleaseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("release_date %q is not a recognized date", s)
}

// formatReleaseDate renders t in HTTP date format.
func formatReleaseDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
