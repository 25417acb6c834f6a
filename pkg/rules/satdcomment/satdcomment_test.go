package satdcomment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
)

func parse(t *testing.T, lang parser.Language, source string) *parser.Result {
	t.Helper()
	p := parser.New()
	t.Cleanup(p.Close)

	res, err := p.Parse(context.Background(), []byte(source), lang, "test")
	require.NoError(t, err)
	return res
}

func TestDetectMarkers(t *testing.T) {
	tests := []struct {
		name     string
		lang     parser.Language
		source   string
		marker   string
		severity models.Severity
	}{
		{
			name:     "python todo",
			lang:     parser.LangPython,
			source:   "# TODO: handle the empty case\nx = 1\n",
			marker:   "TODO",
			severity: models.SeverityLow,
		},
		{
			name:     "bash fixme",
			lang:     parser.LangBash,
			source:   "# FIXME this breaks on spaces\necho hi\n",
			marker:   "FIXME",
			severity: models.SeverityHigh,
		},
		{
			name:     "javascript hack",
			lang:     parser.LangJavaScript,
			source:   "// HACK: bypass the cache\nlet x = 1;\n",
			marker:   "HACK",
			severity: models.SeverityMedium,
		},
		{
			name:     "ruby security",
			lang:     parser.LangRuby,
			source:   "# SECURITY: token logged in plaintext\nputs 1\n",
			marker:   "SECURITY",
			severity: models.SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.lang, tt.source)

			findings := New().Detect(res, tt.source)
			require.Len(t, findings, 1)
			assert.Equal(t, "satd-comment", findings[0].Rule)
			assert.Equal(t, tt.severity, findings[0].Severity)
			assert.Contains(t, findings[0].Message, tt.marker)
			assert.Equal(t, uint32(1), findings[0].Line)
			assert.False(t, findings[0].Fixable, "debt markers have no mechanical fix")
		})
	}
}

func TestMarkerInCodeNotFlagged(t *testing.T) {
	source := "todo = \"buy milk\"\nprint(todo)\n"
	res := parse(t, parser.LangPython, source)

	findings := New().Detect(res, source)
	assert.Empty(t, findings, "identifiers are not comments")
}

func TestCleanCommentNotFlagged(t *testing.T) {
	source := "# parses the config file\nx = 1\n"
	res := parse(t, parser.LangPython, source)

	assert.Empty(t, New().Detect(res, source))
}

func TestStrictMode(t *testing.T) {
	res := parse(t, parser.LangPython, "# TODO maybe later\n# TODO: refactor this loop\nx = 1\n")

	relaxed := New().Detect(res, string(res.Source))
	assert.Len(t, relaxed, 2)

	strict := New(WithStrictMode()).Detect(res, string(res.Source))
	require.Len(t, strict, 1)
	assert.Equal(t, uint32(2), strict[0].Line, "only the colon-form marker matches in strict mode")
}

func TestHighestSeverityWins(t *testing.T) {
	source := "# FIXME: TODO clean this up\nx = 1\n"
	res := parse(t, parser.LangPython, source)

	findings := New().Detect(res, source)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
}
