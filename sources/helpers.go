package sources

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	digitsRegex = regexp.MustCompile(`\d+`)
	yearRegex   = regexp.MustCompile(`(19|20)\d{2}`)
)

// parseEuro extracts a whole-euro amount from strings like "€ 11.950,-",
// "€11.950,00" or "11950". Returns 0 when no amount is present.
func parseEuro(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Drop a cents suffix before stripping separators.
	if i := strings.IndexAny(s, ","); i >= 0 {
		s = s[:i]
	}
	var result int
	var seen bool
	for _, c := range s {
		if c >= '0' && c <= '9' {
			result = result*10 + int(c-'0')
			seen = true
		}
	}
	if !seen {
		return 0
	}
	return result
}

// parseKM extracts a kilometre count from strings like "45.000 km".
func parseKM(s string) *int {
	s = strings.ReplaceAll(s, ".", "")
	m := digitsRegex.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// parseYear extracts a 4-digit year from strings like "03/2019" or "2019".
func parseYear(s string) *int {
	m := yearRegex.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// absoluteURL prefixes site-relative hrefs with the source's origin.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}

// classifyAttribute routes a free-form spec fragment ("45.000 km",
// "Benzine", "2019", "Automaat") to the right listing field.
func classifyAttribute(text string, fuel, gearbox *string, year, mileage **int) {
	t := strings.ToLower(cleanText(text))
	switch {
	case t == "":
		return
	case strings.Contains(t, "km"):
		if *mileage == nil {
			*mileage = parseKM(t)
		}
	case isFuelWord(t):
		if *fuel == "" {
			*fuel = t
		}
	case isGearboxWord(t):
		if *gearbox == "" {
			*gearbox = t
		}
	default:
		if *year == nil {
			*year = parseYear(t)
		}
	}
}

func isFuelWord(t string) bool {
	for _, w := range []string{"benzine", "diesel", "elektrisch", "hybride", "lpg", "cng"} {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

func isGearboxWord(t string) bool {
	for _, w := range []string{"handgeschakeld", "automaat", "semi-automaat"} {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}
