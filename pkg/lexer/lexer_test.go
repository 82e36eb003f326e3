package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valp-lang/valp/pkg/lexer"
)

func scanAll(src string) []lexer.Token {
	l := lexer.New(src)
	var toks []lexer.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == lexer.EOF || tok.Kind == lexer.ERROR {
			break
		}
	}
	return toks
}

func TestKeywordsAndPunctuation(t *testing.T) {
	toks := scanAll(`const x = 1; fun f() {} class C { def m() { self.y += 2; } }`)
	kinds := make([]lexer.Kind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, lexer.CONST)
	assert.Contains(t, kinds, lexer.FUN)
	assert.Contains(t, kinds, lexer.DEF)
	assert.Contains(t, kinds, lexer.SELF)
	assert.Contains(t, kinds, lexer.PLUS_EQUAL)
}

func TestNumbers(t *testing.T) {
	toks := scanAll(`1 2.5 100`)
	require.Len(t, toks, 4) // 3 numbers + EOF
	for _, tok := range toks[:3] {
		assert.Equal(t, lexer.NUMBER, tok.Kind)
	}
}

func TestStringSpansNewlines(t *testing.T) {
	toks := scanAll("\"a\nb\"")
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(t, lexer.STRING, toks[0].Kind)
	assert.Equal(t, "\"a\nb\"", toks[0].Lexeme)
}

func TestUnterminatedString(t *testing.T) {
	toks := scanAll(`"abc`)
	require.NotEmpty(t, toks)
	assert.Equal(t, lexer.ERROR, toks[0].Kind)
	assert.Equal(t, "Unterminated string.", toks[0].Lexeme)
}

func TestUnexpectedCharacter(t *testing.T) {
	toks := scanAll(`@`)
	require.NotEmpty(t, toks)
	assert.Equal(t, lexer.ERROR, toks[0].Kind)
}

func TestLineCommentsSkipped(t *testing.T) {
	toks := scanAll("// a comment\nvar")
	require.NotEmpty(t, toks)
	assert.Equal(t, lexer.VAR, toks[0].Kind)
	assert.Equal(t, 2, toks[0].Line)
}

func TestSwitchCaseBreakNext(t *testing.T) {
	toks := scanAll(`switch (x) { case 1: break; case 2: next; }`)
	var kinds []lexer.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, lexer.SWITCH)
	assert.Contains(t, kinds, lexer.CASE)
	assert.Contains(t, kinds, lexer.BREAK)
	assert.Contains(t, kinds, lexer.NEXT)
}

func TestTernaryTokens(t *testing.T) {
	toks := scanAll(`x ? 1 : 2`)
	var kinds []lexer.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, lexer.QUESTION)
	assert.Contains(t, kinds, lexer.COLON)
}
