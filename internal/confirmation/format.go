package confirmation

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PickupFallback is shown when no usable pickup date and time were given.
const PickupFallback = "To be arranged via email"

const (
	dateLayout   = "January 2, 2006"
	pickupLayout = "Monday, January 2, 2006 at 3:04 PM"
)

var (
	pickupDateLayouts = []string{"2006-01-02", "01/02/2006", "January 2, 2006"}
	pickupTimeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3PM"}

	// knownAspects are listed first, in this order, in variant annotations.
	knownAspects = []string{"shell", "filling"}
)

// FormatCents renders an amount of cents as dollars, e.g. "$12.34".
func FormatCents(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

// FormatDate renders t as "January 2, 2006".
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatPickup renders pickup date and time as
// "Monday, January 2, 2006 at 3:04 PM", or PickupFallback when either part
// is missing or cannot be parsed.
func FormatPickup(date, clock string) string {
	d, ok := parseAny(pickupDateLayouts, strings.TrimSpace(date))
	if !ok {
		return PickupFallback
	}
	c, ok := parseAny(pickupTimeLayouts, strings.ToUpper(strings.TrimSpace(clock)))
	if !ok {
		return PickupFallback
	}
	at := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, time.UTC)
	return at.Format(pickupLayout)
}

// FormatVariants renders selections as "(Shell: Pink / Filling: White)".
// Shell and filling come first; other aspects follow sorted by name. An
// empty map yields "".
func FormatVariants(variants map[string]string) string {
	if len(variants) == 0 {
		return ""
	}

	var rest []string
	for aspect := range variants {
		if !slices.Contains(knownAspects, aspect) {
			rest = append(rest, aspect)
		}
	}
	slices.Sort(rest)

	var parts []string
	for _, aspect := range append(slices.Clone(knownAspects), rest...) {
		if v, ok := variants[aspect]; ok {
			parts = append(parts, titleCase(aspect)+": "+v)
		}
	}
	return "(" + strings.Join(parts, " / ") + ")"
}

// FormatAddress renders "address, city postalCode".
func FormatAddress(address, city, postalCode string) string {
	return strings.TrimSpace(address + ", " + strings.TrimSpace(city+" "+postalCode))
}

func parseAny(layouts []string, value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
