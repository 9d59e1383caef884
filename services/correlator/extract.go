package correlator

import (
	"regexp"
	"strings"

	"refassist-backend/lib/editorial"
)

var addressRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// ExtractAddress pulls the referee's most plausible email address out of a
// message. Addresses in the To field win over addresses scraped from the
// body, and within each pool an address containing the referee's last or
// first name wins over the first one found.
func ExtractAddress(msg editorial.EmailMessage, last, first string) string {
	if addr := pickAddress(addressRegex.FindAllString(msg.To, -1), last, first); addr != "" {
		return addr
	}
	return pickAddress(addressRegex.FindAllString(msg.Body, -1), last, first)
}

func pickAddress(addresses []string, last, first string) string {
	if len(addresses) == 0 {
		return ""
	}
	for _, addr := range addresses {
		lowered := strings.ToLower(addr)
		if last != "" && strings.Contains(lowered, last) {
			return addr
		}
	}
	for _, addr := range addresses {
		lowered := strings.ToLower(addr)
		if first != "" && strings.Contains(lowered, first) {
			return addr
		}
	}
	return addresses[0]
}
