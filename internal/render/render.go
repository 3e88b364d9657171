// Package render implements the Jinja-style template engine shared by
// the seed spec loader and the render command's "gotemplate" mode. It
// wraps pongo2, which gives {{ }} / {% %} syntax with lenient
// undefined-variable access.
package render

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"
)

func init() {
	_ = pongo2.RegisterFilter("sha256", filterSHA256)
	_ = pongo2.RegisterFilter("base64_encode", filterBase64Encode)
	_ = pongo2.RegisterFilter("base64_decode", filterBase64Decode)
}

// Render evaluates templateText with env exposed as the "env" context
// variable, returning the rendered document. Undefined variable access is
// lenient: pongo2 resolves a missing key to an empty value rather than
// erroring.
func Render(templateText string, env map[string]string) (string, error) {
	tpl, err := pongo2.FromString(templateText)
	if err != nil {
		return "", fmt.Errorf("render: parse template: %w", err)
	}
	envCtx := make(pongo2.Context, len(env))
	for k, v := range env {
		envCtx[k] = v
	}
	out, err := tpl.Execute(pongo2.Context{"env": envCtx})
	if err != nil {
		return "", fmt.Errorf("render: execute template: %w", err)
	}
	return out, nil
}

// filterSHA256 hashes the UTF-8 bytes of in and returns lowercase hex
// (mode "hex", default) or a list of byte-value integers (mode "bytes").
func filterSHA256(in, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	sum := sha256.Sum256([]byte(in.String()))

	mode := "hex"
	if param != nil && !param.IsNil() && param.String() != "" {
		mode = param.String()
	}

	switch mode {
	case "hex":
		return pongo2.AsValue(hex.EncodeToString(sum[:])), nil
	case "bytes":
		out := make([]int, len(sum))
		for i, b := range sum {
			out[i] = int(b)
		}
		return pongo2.AsValue(out), nil
	default:
		return nil, &pongo2.Error{Sender: "filter:sha256", OrigError: fmt.Errorf("unknown mode %q, want \"hex\" or \"bytes\"", mode)}
	}
}

// filterBase64Encode standard-base64-encodes in. A byte sequence (as
// produced by sha256(..., "bytes")) is encoded byte-for-byte; anything
// else is encoded via its UTF-8 string representation.
func filterBase64Encode(in, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	data, err := valueToBytes(in)
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:base64_encode", OrigError: err}
	}
	return pongo2.AsValue(base64.StdEncoding.EncodeToString(data)), nil
}

// filterBase64Decode standard-base64-decodes in to a UTF-8 string,
// failing on invalid base64 or non-UTF-8 output.
func filterBase64Decode(in, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	decoded, err := base64.StdEncoding.DecodeString(in.String())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:base64_decode", OrigError: fmt.Errorf("invalid base64 input: %w", err)}
	}
	if !utf8.Valid(decoded) {
		return nil, &pongo2.Error{Sender: "filter:base64_decode", OrigError: fmt.Errorf("decoded value is not valid UTF-8")}
	}
	return pongo2.AsValue(string(decoded)), nil
}

func valueToBytes(v *pongo2.Value) ([]byte, error) {
	if v.IsString() {
		return []byte(v.String()), nil
	}
	if v.CanSlice() {
		n := v.Len()
		out := make([]byte, n)
		for i := 0; i < n; i++ {
			item := v.Index(i)
			iv, ok := item.Interface().(int)
			if !ok {
				return []byte(v.String()), nil
			}
			out[i] = byte(iv)
		}
		return out, nil
	}
	return []byte(v.String()), nil
}
