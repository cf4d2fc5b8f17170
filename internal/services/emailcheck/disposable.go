// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package emailcheck

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// disposableDomains are known temporary-mail providers.
var disposableDomains = lo.SliceToMap([]string{
	"tempmail.com",
	"temp-mail.org",
	"guerrillamail.com",
	"mailinator.com",
	"10minutemail.com",
	"yopmail.com",
	"throwawaymail.com",
	"getairmail.com",
	"dispostable.com",
}, func(d string) (string, struct{}) { return d, struct{}{} })

// IsDisposable reports whether the domain of email is a temporary-mail provider.
func IsDisposable(email string) bool {
	_, domain := SplitAddress(email)
	_, ok := disposableDomains[strings.ToLower(domain)]
	return ok
}

// DisposableDomains returns the blocked domains in sorted order.
func DisposableDomains() []string {
	domains := lo.Keys(disposableDomains)
	slices.Sort(domains)
	return domains
}
