package deadcode

import (
	"fmt"
	"regexp"
	"strings"
)

// pcreFlags maps PCRE modifiers onto Go's inline flags.
var pcreFlags = map[rune]string{
	'i': "i",
	'm': "m",
	's': "s",
	'U': "U",
}

// CompilePattern compiles a keep pattern. Plain Go regular expressions are
// accepted as-is. Delimited patterns such as "/^App\\Legacy/i" have their
// delimiters stripped and their i, m, s and U modifiers translated.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	body, flags, delimited := splitDelimited(pattern)
	if !delimited {
		return regexp.Compile(pattern)
	}

	var inline strings.Builder
	for _, f := range flags {
		goFlag, ok := pcreFlags[f]
		if !ok {
			return nil, fmt.Errorf("unsupported pattern modifier %q", f)
		}
		if !strings.Contains(inline.String(), goFlag) {
			inline.WriteString(goFlag)
		}
	}
	if inline.Len() > 0 {
		body = "(?" + inline.String() + ")" + body
	}
	return regexp.Compile(body)
}

// splitDelimited recognises "<d>body<d>flags" where d is a punctuation
// delimiter and flags are letters only.
func splitDelimited(pattern string) (body, flags string, ok bool) {
	if len(pattern) < 2 {
		return "", "", false
	}
	d := pattern[0]
	if !strings.ContainsRune("/#~@!%|+", rune(d)) {
		return "", "", false
	}
	end := strings.LastIndexByte(pattern, d)
	if end == 0 {
		return "", "", false
	}
	flags = pattern[end+1:]
	for _, r := range flags {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return "", "", false
		}
	}
	return pattern[1:end], flags, true
}
