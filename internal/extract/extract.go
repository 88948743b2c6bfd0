// Package extract turns the text payloads of inverter mails into records:
// CSV exports become telemetry, alarm bodies become alert entries.
package extract

import "strings"

// cutAtFirst truncates s at the earliest occurrence of any marker.
func cutAtFirst(s string, markers []string) string {
	cut := len(s)
	for _, m := range markers {
		if i := strings.Index(s, m); i >= 0 && i < cut {
			cut = i
		}
	}
	return s[:cut]
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
