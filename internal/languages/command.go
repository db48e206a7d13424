package languages

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

const sourcesToken = "{sources}"

var (
	placeholderPattern = regexp.MustCompile(`\{[a-z]+\}`)
	safeWordPattern    = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)
	extensionPattern   = regexp.MustCompile(`^\.[A-Za-z0-9+]+$`)
)

// render builds a shell command from a fixed template. Each token is quoted,
// so substituted values can only ever become single arguments. The token
// {sources} expands to an unquoted glob over the extension, matching every
// source of the language in the working directory.
func render(template, ext string, vars map[string]string) (string, error) {
	tokens, err := shlex.Split(template)
	if err != nil {
		return "", fmt.Errorf("invalid command template %q: %w", template, err)
	}
	if len(tokens) == 0 {
		return "", fmt.Errorf("empty command template")
	}

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == sourcesToken {
			if !extensionPattern.MatchString(ext) {
				return "", fmt.Errorf("invalid source extension %q", ext)
			}
			out = append(out, "*"+quote(ext))
			continue
		}

		var missing string
		word := placeholderPattern.ReplaceAllStringFunc(tok, func(p string) string {
			v, ok := vars[strings.Trim(p, "{}")]
			if !ok {
				missing = p
			}
			return v
		})
		if missing != "" {
			return "", fmt.Errorf("unknown placeholder %s in template %q", missing, template)
		}
		out = append(out, quote(word))
	}
	return strings.Join(out, " "), nil
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if safeWordPattern.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
