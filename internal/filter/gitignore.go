package filter

import (
	"regexp"
	"strings"
)

// GitignoreMatcher holds compiled gitignore patterns. It is built once from
// the repository's root .gitignore text and is immutable afterwards.
//
// Supported syntax: `**/` prefixes, rooted `/` patterns, trailing-`/`
// directory patterns, and `*`/`?` wildcards. Negation patterns are parsed
// and recognized but never re-include a path that an earlier pattern
// excluded; exclusion here is one-way.
type GitignoreMatcher struct {
	rules []gitignoreRule
}

type gitignoreRule struct {
	pattern  string
	regex    *regexp.Regexp
	negation bool
	dirOnly  bool
	anchored bool
}

// NewGitignoreMatcher parses gitignore text into a matcher.
// Empty or comment lines are skipped.
func NewGitignoreMatcher(content string) *GitignoreMatcher {
	m := &GitignoreMatcher{}
	for _, line := range strings.Split(content, "\n") {
		m.addPattern(line)
	}
	return m
}

func (m *GitignoreMatcher) addPattern(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || (strings.HasPrefix(pattern, "#") && !strings.HasPrefix(pattern, `\#`)) {
		return
	}

	r := gitignoreRule{pattern: pattern}

	if strings.HasPrefix(pattern, `\#`) || strings.HasPrefix(pattern, `\!`) {
		pattern = strings.TrimPrefix(pattern, `\`)
	} else if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}

	// "doc/frotz" means "/doc/frotz", not "**/doc/frotz".
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") && !strings.HasPrefix(pattern, "*") {
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + gitignorePatternToRegex(pattern) + "$")
	m.rules = append(m.rules, r)
}

// Match reports whether path is excluded by the gitignore rules.
// Negation rules are skipped entirely, so nothing is ever re-included.
func (m *GitignoreMatcher) Match(path string) bool {
	path = strings.ReplaceAll(path, "\\", "/")

	for _, r := range m.rules {
		if r.negation {
			continue
		}
		if matchGitignoreRule(path, r) {
			return true
		}
	}
	return false
}

// matchGitignoreRule checks one rule against a path. Directory patterns
// (trailing /) match any file under a matching directory component.
func matchGitignoreRule(path string, r gitignoreRule) bool {
	parts := strings.Split(path, "/")
	basename := parts[len(parts)-1]

	if r.anchored {
		if r.regex.MatchString(path) {
			return true
		}
		// Files inside an anchored directory pattern.
		for i := range parts[:len(parts)-1] {
			if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
				return true
			}
		}
		return false
	}

	if r.dirOnly {
		// Any directory component may match; the final component is a file
		// in our listing, so it never satisfies a directory-only rule itself.
		for _, part := range parts[:len(parts)-1] {
			if r.regex.MatchString(part) {
				return true
			}
		}
		return false
	}

	if r.regex.MatchString(basename) {
		return true
	}
	if r.regex.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// gitignorePatternToRegex converts a gitignore pattern to a regex string.
func gitignorePatternToRegex(pattern string) string {
	var result strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]

		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// **/ matches any number of leading directories.
					result.WriteString("(?:.*/)?")
					i += 3
					continue
				} else if i == 0 || pattern[i-1] == '/' {
					result.WriteString(".*")
					i += 2
					continue
				}
			}
			// Single * never crosses a directory boundary.
			result.WriteString("[^/]*")
			i++

		case '?':
			result.WriteString("[^/]")
			i++

		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				result.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				result.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}

		case '\\':
			if i+1 < len(pattern) {
				result.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				result.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}

		case '.', '+', '^', '$', '(', ')', '{', '}', '|':
			result.WriteString(regexp.QuoteMeta(string(c)))
			i++

		default:
			result.WriteByte(c)
			i++
		}
	}

	return result.String()
}
