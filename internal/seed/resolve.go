package seed

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RefStore is the process-lifetime, append-only mapping from a row's
// "_ref" name to the column -> resolved-value record captured when that
// row was inserted. It is owned by the Executor for one run and discarded
// afterwards; there are no back-links, so no cycles are possible.
type RefStore struct {
	records map[string]map[string]string
}

// NewRefStore returns an empty reference store.
func NewRefStore() *RefStore {
	return &RefStore{records: make(map[string]map[string]string)}
}

// Capture registers record under ref, overwriting any prior capture
// under the same name; keeping ref names unique is the plan author's
// responsibility.
func (s *RefStore) Capture(ref string, record map[string]string) {
	s.records[ref] = record
}

// Lookup resolves "@ref:NAME.col", returning an error if NAME was never
// captured or the column is missing from its record.
func (s *RefStore) Lookup(name, column string) (string, error) {
	record, ok := s.records[name]
	if !ok {
		return "", fmt.Errorf("seed: unknown reference %q", name)
	}
	val, ok := record[column]
	if !ok {
		return "", fmt.Errorf("seed: reference %q has no column %q", name, column)
	}
	return val, nil
}

const (
	refPrefix = "@ref:"
	envPrefix = "$env:"
)

// ResolveValue maps a raw spec value to the driver-bound string the
// executor submits to SQL, expanding "@ref:" and "$env:" prefixes.
func ResolveValue(v any, refs *RefStore) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return resolveString(t, refs)
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

func resolveString(s string, refs *RefStore) (string, error) {
	switch {
	case strings.HasPrefix(s, refPrefix):
		rest := strings.TrimPrefix(s, refPrefix)
		dot := strings.LastIndex(rest, ".")
		if dot < 0 {
			return "", fmt.Errorf("seed: malformed reference expression %q, want NAME.column", s)
		}
		name, column := rest[:dot], rest[dot+1:]
		if name == "" || column == "" {
			return "", fmt.Errorf("seed: malformed reference expression %q, want NAME.column", s)
		}
		return refs.Lookup(name, column)
	case strings.HasPrefix(s, envPrefix):
		varName := strings.TrimPrefix(s, envPrefix)
		val, ok := os.LookupEnv(varName)
		if !ok {
			return "", fmt.Errorf("seed: environment variable %q referenced by $env: is not set", varName)
		}
		return val, nil
	default:
		return s, nil
	}
}
