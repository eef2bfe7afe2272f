package proxy

import "strings"

// ResolveModel maps retired Gemini model names onto their current
// replacements. Other names pass through unchanged.
func ResolveModel(name string) string {
	switch {
	case strings.Contains(name, "1.5-flash") || name == "gemini-flash":
		return "gemini-2.5-flash"
	case strings.Contains(name, "1.5-pro") || name == "gemini-pro":
		return "gemini-2.5-pro"
	}
	return name
}
