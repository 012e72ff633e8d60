package ldapauth

import (
	"strings"
)

// maskSensitiveData masks identifiers for logging, keeping just enough of
// the value to correlate log lines
func maskSensitiveData(data string) string {
	runes := []rune(data)
	if len(runes) <= 4 {
		return "***"
	}

	// Show first 2 and last 2 characters, mask the middle
	visible := 2
	if len(runes) < 6 {
		visible = 1
	}

	prefix := string(runes[:visible])
	suffix := string(runes[len(runes)-visible:])
	masked := strings.Repeat("*", len(runes)-2*visible)

	return prefix + masked + suffix
}
