package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/mend/pkg/parser"
)

func parse(t *testing.T, p *parser.Parser, lang parser.Language, source string) *parser.Result {
	t.Helper()
	res, err := p.Parse(context.Background(), []byte(source), lang, "test")
	require.NoError(t, err)
	return res
}

func TestValidateUnchangedText(t *testing.T) {
	p := parser.New()
	defer p.Close()

	source := "curl http://example.com\necho done\n"
	original := parse(t, p, parser.LangBash, source)

	out, err := Validate(context.Background(), p, original, source)
	require.NoError(t, err)

	assert.Equal(t, 0, out.NewDiagnostics)
	assert.True(t, out.SyntaxValid)
	assert.Equal(t, 1.0, out.Similarity, "identical text has identical shape")
	require.NotNil(t, out.Result)
}

func TestValidateTokenReplacement(t *testing.T) {
	p := parser.New()
	defer p.Close()

	original := parse(t, p, parser.LangBash, "curl http://example.com\necho done\n")

	out, err := Validate(context.Background(), p, original, "curl https://example.com\necho done\n")
	require.NoError(t, err)

	assert.True(t, out.SyntaxValid)
	assert.GreaterOrEqual(t, out.Similarity, 0.9,
		"a single token swap should preserve nearly all structure")
}

func TestValidateBreakingEdit(t *testing.T) {
	p := parser.New()
	defer p.Close()

	original := parse(t, p, parser.LangJavaScript, "function f() {\n  return 1;\n}\n")

	out, err := Validate(context.Background(), p, original, "function f() {\n  return 1;\n")
	require.NoError(t, err)

	assert.Greater(t, out.NewDiagnostics, 0, "dropping a brace must surface diagnostics")
	assert.False(t, out.SyntaxValid)
}

func TestValidateRepairCountsNoNewDiagnostics(t *testing.T) {
	p := parser.New()
	defer p.Close()

	broken := parse(t, p, parser.LangJavaScript, "function f() {\n  return 1;\n")
	require.NotEmpty(t, broken.Diagnostics)

	out, err := Validate(context.Background(), p, broken, "function f() {\n  return 1;\n}\n")
	require.NoError(t, err)

	assert.Equal(t, 0, out.NewDiagnostics, "repairs never count as regressions")
	assert.True(t, out.SyntaxValid)
}

func TestValidateRewriteScoresLowerThanTweak(t *testing.T) {
	p := parser.New()
	defer p.Close()

	source := "def pay(user):\n    return user.balance\n"
	original := parse(t, p, parser.LangPython, source)

	tweak, err := Validate(context.Background(), p, original, "def pay(user):\n    return user.credits\n")
	require.NoError(t, err)

	rewrite, err := Validate(context.Background(), p, original,
		"import os\n\nclass Engine:\n    def run(self):\n        for i in range(10):\n            print(i)\n")
	require.NoError(t, err)

	assert.Greater(t, tweak.Similarity, rewrite.Similarity,
		"a full rewrite must drift further than a token tweak")
}

func TestSimilarityNilRoots(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(nil, nil))

	p := parser.New()
	defer p.Close()
	res := parse(t, p, parser.LangBash, "echo hi\n")

	assert.Equal(t, 0.0, Similarity(res.Tree.RootNode(), nil))
	assert.Equal(t, 0.0, Similarity(nil, res.Tree.RootNode()))
}

func TestSimilarityBounds(t *testing.T) {
	p := parser.New()
	defer p.Close()

	a := parse(t, p, parser.LangPython, "x = 1\n")
	b := parse(t, p, parser.LangPython, "def f():\n    return [i for i in range(3)]\n\nclass C:\n    pass\n")

	sim := Similarity(a.Tree.RootNode(), b.Tree.RootNode())
	assert.GreaterOrEqual(t, sim, 0.0)
	assert.LessOrEqual(t, sim, 1.0)
	assert.Less(t, sim, 1.0, "different programs should not score as identical")
}
