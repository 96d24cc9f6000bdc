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

import (
	"fmt"
	"strconv"
)

// Grammar:
//
//	expression = term { ("+" | "-") term } .
//	term       = unary { ("*" | "/") unary } .
//	unary      = "-" unary | primary .
//	primary    = number | identifier | identifier "(" args ")" | "(" expression ")" .
//	args       = expression { "," expression } .
type parser struct {
	lex *lexer
	cur token
}

func newParser(src string) *parser {
	p := &parser{lex: newLexer(src)}
	p.next()
	return p
}

func (p *parser) next() { p.cur = p.lex.scan() }

func (p *parser) expect(t tokenType, what string) error {
	if p.cur.Type != t {
		return fmt.Errorf("expected %s at offset %d, got %s", what, p.cur.Pos, p.cur)
	}
	p.next()
	return nil
}

func (p *parser) parseExpression() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == tokPlus || p.cur.Type == tokMinus {
		op := p.cur.Type
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == tokStar || p.cur.Type == tokSlash {
		op := p.cur.Type
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.cur.Type == tokMinus {
		p.next()
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate{n: n}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	switch p.cur.Type {
	case tokNumber:
		v, err := strconv.ParseFloat(p.cur.Lit, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q at offset %d", p.cur.Lit, p.cur.Pos)
		}
		p.next()
		return literal(v), nil

	case tokIdent:
		name := p.cur.Lit
		p.next()
		if p.cur.Type != tokLParen {
			return ident(name), nil
		}
		if !isFunction(name) {
			return nil, fmt.Errorf("unknown function %q at offset %d", name, p.cur.Pos)
		}
		p.next()
		var args []node
		if p.cur.Type != tokRParen {
			for {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.cur.Type != tokComma {
					break
				}
				p.next()
			}
		}
		if err := p.expect(tokRParen, `")"`); err != nil {
			return nil, err
		}
		if want := arity(name); len(args) != want {
			return nil, fmt.Errorf("function %q takes %d argument(s), got %d", name, want, len(args))
		}
		return call{name: name, args: args}, nil

	case tokLParen:
		p.next()
		n, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, `")"`); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unexpected %s at offset %d", p.cur, p.cur.Pos)
}
