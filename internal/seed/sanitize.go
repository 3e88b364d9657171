package seed

import "strings"

// SanitizeIdentifier reduces name to the conservative [A-Za-z0-9_]
// character class used for every identifier interpolated into SQL
// (table, column, tracking-table, database, and schema names). Other
// bytes are dropped outright; case is preserved.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeLiteral doubles single quotes in s and wraps the result in single
// quotes. Used only where parameter binding is unavailable, namely
// PostgreSQL's interpolated-literal insert and row-existence paths (see
// driver_postgres.go).
func EscapeLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
