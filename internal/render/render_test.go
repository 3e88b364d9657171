package render

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEnvAccess(t *testing.T) {
	out, err := Render("hello {{ env.WHO }}", map[string]string{"WHO": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestRenderUndefinedIsLenient(t *testing.T) {
	out, err := Render("[{{ env.NOT_SET_ANYWHERE }}]", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestRenderConditional(t *testing.T) {
	out, err := Render("{% if env.FLAG %}on{% else %}off{% endif %}", map[string]string{"FLAG": "yes"})
	require.NoError(t, err)
	assert.Equal(t, "on", out)

	out, err = Render("{% if env.FLAG %}on{% else %}off{% endif %}", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "off", out)
}

func TestRenderInvalidTemplate(t *testing.T) {
	_, err := Render("{{ broken %}", nil)
	assert.Error(t, err)
}

func TestSHA256FilterHex(t *testing.T) {
	out, err := Render(`{{ "abc"|sha256 }}`, nil)
	require.NoError(t, err)
	want := sha256.Sum256([]byte("abc"))
	assert.Equal(t, hex.EncodeToString(want[:]), out)
}

func TestSHA256FilterBytesThroughBase64(t *testing.T) {
	out, err := Render(`{{ "abc"|sha256:"bytes"|base64_encode }}`, nil)
	require.NoError(t, err)
	want := sha256.Sum256([]byte("abc"))
	assert.Equal(t, base64.StdEncoding.EncodeToString(want[:]), out)
}

func TestBase64RoundTrip(t *testing.T) {
	for _, s := range []string{"", "hello", "snowman ☃", "multi\nline"} {
		encoded := base64.StdEncoding.EncodeToString([]byte(s))
		out, err := Render(`{{ env.V|base64_decode }}`, map[string]string{"V": encoded})
		require.NoError(t, err)
		assert.Equal(t, s, out)
	}
}

func TestBase64DecodeInvalid(t *testing.T) {
	_, err := Render(`{{ "not-base64!!!"|base64_decode }}`, nil)
	assert.Error(t, err)
}

func TestEnvsubstBasic(t *testing.T) {
	t.Setenv("TEST_RENDER_VAR", "hello")
	assert.Equal(t, "say hello", Envsubst("say ${TEST_RENDER_VAR}"))
	assert.Equal(t, "say hello", Envsubst("say $TEST_RENDER_VAR"))
}

func TestEnvsubstMissingLeftLiteral(t *testing.T) {
	assert.Equal(t, "${MISSING_VAR_XYZ}", Envsubst("${MISSING_VAR_XYZ}"))
	assert.Equal(t, "$MISSING_VAR_XYZ", Envsubst("$MISSING_VAR_XYZ"))
}

func TestEnvsubstEmptyValue(t *testing.T) {
	t.Setenv("TEST_EMPTY_VAR", "")
	assert.Equal(t, "", Envsubst("${TEST_EMPTY_VAR}"))
}

func TestEnvsubstNoVars(t *testing.T) {
	assert.Equal(t, "", Envsubst(""))
	assert.Equal(t, "no vars here", Envsubst("no vars here"))
	assert.Equal(t, "just a $ sign", Envsubst("just a $ sign"))
}

func TestEnvsubstAdjacentAndMultiline(t *testing.T) {
	t.Setenv("TEST_A", "X")
	t.Setenv("TEST_B", "Y")
	assert.Equal(t, "XY", Envsubst("${TEST_A}${TEST_B}"))

	t.Setenv("TEST_ML", "val")
	out := Envsubst("line1 ${TEST_ML}\nline2 $TEST_ML")
	assert.Equal(t, "line1 val\nline2 val", out)
}

func TestEnvsubstUnclosedBrace(t *testing.T) {
	t.Setenv("TEST_UNCLOSED", "v")
	assert.Equal(t, "${TEST_UNCLOSED", Envsubst("${TEST_UNCLOSED"))
}
