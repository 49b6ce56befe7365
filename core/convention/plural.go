package convention

import "strings"

// irregular maps singular nouns to their plurals.
var irregular = map[string]string{
	"person":   "people",
	"man":      "men",
	"woman":    "women",
	"child":    "children",
	"foot":     "feet",
	"tooth":    "teeth",
	"mouse":    "mice",
	"ox":       "oxen",
	"index":    "indices",
	"analysis": "analyses",
	"datum":    "data",
	"medium":   "media",
	"status":   "statuses",
}

// uncountable nouns read the same in both forms.
var uncountable = map[string]bool{
	"news":      true,
	"series":    true,
	"species":   true,
	"equipment": true,
	"info":      true,
	"metadata":  true,
}

// Pluralize returns the English plural of a lower or mixed case word.
func Pluralize(word string) string {
	if word == "" {
		return ""
	}
	lower := strings.ToLower(word)
	if uncountable[lower] {
		return word
	}
	if plural, ok := irregular[lower]; ok {
		return matchCase(word, plural)
	}

	switch {
	case hasAnySuffix(lower, "s", "x", "z", "ch", "sh"):
		return word + "es"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(lower[len(lower)-2]):
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(lower, "fe"):
		return word[:len(word)-2] + "ves"
	case strings.HasSuffix(lower, "f") && !strings.HasSuffix(lower, "ff"):
		return word[:len(word)-1] + "ves"
	}
	return word + "s"
}

// IsPlural reports whether word already looks like a plural noun.
func IsPlural(word string) bool {
	lower := strings.ToLower(word)
	if uncountable[lower] {
		return true
	}
	for _, plural := range irregular {
		if plural == lower {
			return true
		}
	}
	if _, ok := irregular[lower]; ok {
		return false
	}
	return strings.HasSuffix(lower, "s") && !hasAnySuffix(lower, "ss", "us", "is")
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func matchCase(original, plural string) string {
	if original[0] >= 'A' && original[0] <= 'Z' {
		return strings.ToUpper(plural[:1]) + plural[1:]
	}
	return plural
}
