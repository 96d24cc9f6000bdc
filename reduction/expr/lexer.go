// Copyright 2025 GreonXpert
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package expr

type lexer struct {
	src []byte
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []byte(src)}
}

func (l *lexer) scan() token {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{Type: tokEOF, Pos: l.pos}
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '+':
		l.pos++
		return token{tokPlus, "+", start}
	case c == '-':
		l.pos++
		return token{tokMinus, "-", start}
	case c == '*':
		l.pos++
		return token{tokStar, "*", start}
	case c == '/':
		l.pos++
		return token{tokSlash, "/", start}
	case c == '(':
		l.pos++
		return token{tokLParen, "(", start}
	case c == ')':
		l.pos++
		return token{tokRParen, ")", start}
	case c == ',':
		l.pos++
		return token{tokComma, ",", start}
	case isDigit(c) || c == '.':
		return l.scanNumber()
	case isIdentStart(c):
		return l.scanIdent()
	}
	l.pos++
	return token{tokInvalid, string(c), start}
}

func (l *lexer) scanNumber() token {
	start := l.pos
	seenDot := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '.' {
			if seenDot {
				break
			}
			seenDot = true
			l.pos++
			continue
		}
		if !isDigit(c) {
			break
		}
		l.pos++
	}
	// Exponent suffix, e.g. 1.5e-3.
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		mark := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = mark
		}
	}
	return token{tokNumber, string(l.src[start:l.pos]), start}
}

func (l *lexer) scanIdent() token {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	return token{tokIdent, string(l.src[start:l.pos]), start}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
