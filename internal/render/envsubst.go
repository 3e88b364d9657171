package render

import (
	"os"
	"strings"
)

// Envsubst substitutes shell-style $VAR and ${VAR} references with the
// value of the named environment variable. A reference to an unset
// variable is left as literal text; a set-but-empty variable substitutes
// the empty string. No other shell expansion is performed.
func Envsubst(input string) string {
	var out strings.Builder
	out.Grow(len(input))

	for i := 0; i < len(input); {
		if input[i] == '$' && i+1 < len(input) {
			if input[i+1] == '{' {
				if name, end, ok := parseBracedVar(input, i+2); ok {
					if val, set := os.LookupEnv(name); set {
						out.WriteString(val)
					} else {
						out.WriteString(input[i:end])
					}
					i = end
					continue
				}
			} else if isVarStart(input[i+1]) {
				start := i + 1
				end := start + 1
				for end < len(input) && isVarChar(input[end]) {
					end++
				}
				name := input[start:end]
				if val, set := os.LookupEnv(name); set {
					out.WriteString(val)
				} else {
					out.WriteString(input[i:end])
				}
				i = end
				continue
			}
		}
		out.WriteByte(input[i])
		i++
	}
	return out.String()
}

func isVarStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isVarChar(b byte) bool {
	return isVarStart(b) || (b >= '0' && b <= '9')
}

func parseBracedVar(input string, start int) (string, int, bool) {
	if start >= len(input) || !isVarStart(input[start]) {
		return "", 0, false
	}
	end := start + 1
	for end < len(input) && isVarChar(input[end]) {
		end++
	}
	if end < len(input) && input[end] == '}' {
		return input[start:end], end + 1, true
	}
	return "", 0, false
}
