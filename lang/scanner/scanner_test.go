package scanner_test

import (
	"testing"

	"github.com/mna/rustlox/lang/scanner"
	"github.com/mna/rustlox/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	s := scanner.New(src)
	var toks []token.Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestScanPunctuationAndKeywords(t *testing.T) {
	toks := scanAll(t, "var a = 1 + 2; // comment\nprint a;")
	kinds := make([]token.Kind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []token.Kind{
		token.VAR, token.IDENT, token.EQUAL, token.NUMBER, token.PLUS, token.NUMBER,
		token.SEMICOLON, token.PRINT, token.IDENT, token.SEMICOLON, token.EOF,
	}, kinds)
}

func TestScanLineTracking(t *testing.T) {
	toks := scanAll(t, "var a = 1;\n\nprint a;")
	// the PRINT token should be on line 3, after the blank line.
	for _, tok := range toks {
		if tok.Kind == token.PRINT {
			require.Equal(t, 3, tok.Line)
			return
		}
	}
	t.Fatal("print token not found")
}

func TestScanString(t *testing.T) {
	toks := scanAll(t, `"foo bar"`)
	require.Equal(t, token.STRING, toks[0].Kind)
	require.Equal(t, `"foo bar"`, toks[0].Lexeme)
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(t, `"foo`)
	require.Equal(t, token.ILLEGAL, toks[0].Kind)
	require.Equal(t, "Unterminated string.", toks[0].Lexeme)
}

func TestScanNumber(t *testing.T) {
	toks := scanAll(t, "123 1.5 1.")
	require.Equal(t, token.NUMBER, toks[0].Kind)
	require.Equal(t, "123", toks[0].Lexeme)
	require.Equal(t, token.NUMBER, toks[1].Kind)
	require.Equal(t, "1.5", toks[1].Lexeme)
	// a trailing '.' with no digits after it is not part of the number.
	require.Equal(t, "1", toks[2].Lexeme)
	require.Equal(t, token.DOT, toks[3].Kind)
}

func TestScanTwoCharOperators(t *testing.T) {
	toks := scanAll(t, "!= == <= >= ! = < >")
	kinds := make([]token.Kind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []token.Kind{
		token.BANG_EQUAL, token.EQUAL_EQUAL, token.LESS_EQUAL, token.GREATER_EQUAL,
		token.BANG, token.EQUAL, token.LESS, token.GREATER, token.EOF,
	}, kinds)
}

func TestScanAtEndKeepsReturningEOF(t *testing.T) {
	s := scanner.New("")
	require.Equal(t, token.EOF, s.Next().Kind)
	require.Equal(t, token.EOF, s.Next().Kind)
}
