package validation

import "strings"

// disposableDomains are temporary-mail providers we refuse: program
// updates sent there would never be read.
var disposableDomains = map[string]struct{}{
	"10minutemail.com":       {},
	"10minutemail.net":       {},
	"dispostable.com":        {},
	"emailondeck.com":        {},
	"fakeinbox.com":          {},
	"getairmail.com":         {},
	"getnada.com":            {},
	"guerrillamail.com":      {},
	"guerrillamail.net":      {},
	"guerrillamailblock.com": {},
	"mailcatch.com":          {},
	"maildrop.cc":            {},
	"mailinator.com":         {},
	"mailnesia.com":          {},
	"mintemail.com":          {},
	"mohmal.com":             {},
	"sharklasers.com":        {},
	"spamgourmet.com":        {},
	"temp-mail.org":          {},
	"tempail.com":            {},
	"tempmail.com":           {},
	"tempmailo.com":          {},
	"throwawaymail.com":      {},
	"trashmail.com":          {},
	"yopmail.com":            {},
}

// IsDisposableDomain reports whether domain (any case) is a blocked
// temporary-mail provider.
func IsDisposableDomain(domain string) bool {
	_, ok := disposableDomains[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}

// DisposableDomains returns the blocked domains, mainly for tests.
func DisposableDomains() []string {
	out := make([]string, 0, len(disposableDomains))
	for d := range disposableDomains {
		out = append(out, d)
	}
	return out
}
