package weakhash

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/mend/pkg/edit"
	"github.com/panbanda/mend/pkg/parser"
)

func parse(t *testing.T, lang parser.Language, source string) *parser.Result {
	t.Helper()
	p := parser.New()
	t.Cleanup(p.Close)
	res, err := p.Parse(context.Background(), []byte(source), lang, "t")
	require.NoError(t, err)
	return res
}

func TestDetectPythonHashlib(t *testing.T) {
	source := "import hashlib\n\ndigest = hashlib.md5(data).hexdigest()\n"
	res := parse(t, parser.LangPython, source)

	findings := New().Detect(res, source)
	require.Len(t, findings, 1)
	assert.Equal(t, "weak-hash", findings[0].Rule)
	assert.Contains(t, findings[0].Message, "md5")

	fixed, err := edit.Apply(source, findings[0].Fix())
	require.NoError(t, err)
	assert.Equal(t, "import hashlib\n\ndigest = hashlib.sha256(data).hexdigest()\n", fixed)
}

func TestDetectJavaScriptPreservesQuotes(t *testing.T) {
	source := "const h = crypto.createHash('md5');\nconst g = crypto.createHash(\"sha1\");\n"
	res := parse(t, parser.LangJavaScript, source)

	findings := New().Detect(res, source)
	require.Len(t, findings, 2)

	fixed, err := edit.Apply(source, findings[0].Fix())
	require.NoError(t, err)
	assert.Contains(t, fixed, "createHash('sha256')")
	assert.Contains(t, fixed, "createHash(\"sha1\")", "each finding fixes only its own call")

	fixed, err = edit.Apply(source, findings[1].Fix())
	require.NoError(t, err)
	assert.Contains(t, fixed, "createHash(\"sha256\")")
}

func TestDetectRubyDigest(t *testing.T) {
	source := "require 'digest'\nsum = Digest::MD5.hexdigest(data)\n"
	res := parse(t, parser.LangRuby, source)

	findings := New().Detect(res, source)
	require.Len(t, findings, 1)

	fixed, err := edit.Apply(source, findings[0].Fix())
	require.NoError(t, err)
	assert.Contains(t, fixed, "Digest::SHA256.hexdigest")
}

func TestDetectBashChecksum(t *testing.T) {
	source := "md5sum release.tar.gz > release.md5\n"
	res := parse(t, parser.LangBash, source)

	findings := New().Detect(res, source)
	require.Len(t, findings, 1)

	fixed, err := edit.Apply(source, findings[0].Fix())
	require.NoError(t, err)
	assert.Equal(t, "sha256sum release.tar.gz > release.md5\n", fixed)
}

func TestDetectIgnoresStrongHashes(t *testing.T) {
	source := "import hashlib\n\ndigest = hashlib.sha256(data).hexdigest()\n"
	res := parse(t, parser.LangPython, source)

	assert.Empty(t, New().Detect(res, source))
}
