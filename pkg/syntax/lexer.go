package syntax

import (
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokColon
	tokBang
	tokAt
	tokHash
	tokQuestion
	tokStar
	tokPlus
	tokDot
	tokSlash
	tokString
	tokIdent
	tokComment
	tokInvalid
)

type token struct {
	kind  tokenKind
	start int
	end   int
	// unterminated marks a string literal missing its closing quote.
	unterminated bool
}

var punctuation = map[byte]tokenKind{
	'(': tokLParen,
	')': tokRParen,
	'[': tokLBracket,
	']': tokRBracket,
	':': tokColon,
	'!': tokBang,
	'@': tokAt,
	'#': tokHash,
	'?': tokQuestion,
	'*': tokStar,
	'+': tokPlus,
	'.': tokDot,
	'/': tokSlash,
}

func lex(src string) []token {
	var toks []token

	pos := 0

	for pos < len(src) {
		c := src[pos]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			pos++
		case c == ';':
			end := pos

			for end < len(src) && src[end] != '\n' {
				end++
			}

			toks = append(toks, token{kind: tokComment, start: pos, end: end})
			pos = end
		case c == '"':
			tok := lexString(src, pos)
			toks = append(toks, tok)
			pos = tok.end
		case isIdentStart(c):
			end := pos + 1

			for end < len(src) && isIdentPart(src[end]) {
				end++
			}

			toks = append(toks, token{kind: tokIdent, start: pos, end: end})
			pos = end
		default:
			if kind, ok := punctuation[c]; ok {
				toks = append(toks, token{kind: kind, start: pos, end: pos + 1})
				pos++

				continue
			}

			_, size := utf8.DecodeRuneInString(src[pos:])
			toks = append(toks, token{kind: tokInvalid, start: pos, end: pos + size})
			pos += size
		}
	}

	return append(toks, token{kind: tokEOF, start: len(src), end: len(src)})
}

func lexString(src string, start int) token {
	pos := start + 1

	for pos < len(src) {
		switch src[pos] {
		case '\\':
			pos += 2
		case '"':
			return token{kind: tokString, start: start, end: pos + 1}
		case '\n':
			return token{kind: tokString, start: start, end: pos, unterminated: true}
		default:
			pos++
		}
	}

	return token{kind: tokString, start: start, end: len(src), unterminated: true}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '-' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= utf8.RuneSelf
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '.'
}
