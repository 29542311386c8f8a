package css

import (
	"errors"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	tcss "github.com/tdewolff/parse/v2/css"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
)

// Parse builds a stylesheet tree. file is only used to locate errors.
func Parse(src []byte, file string) (*Node, error) {
	parser := tcss.NewParser(parse.NewInputBytes(src), false)

	root := &Node{Kind: Stylesheet}
	stack := []*Node{root}
	// the parser ends a qualified rule at every comma, including commas
	// inside :not() or :is(), so the prelude is split once it is complete
	var prelude []tcss.Token

	for {
		gt, _, data := parser.Next()
		current := stack[len(stack)-1]

		switch gt {
		case tcss.ErrorGrammar:
			if err := parser.Err(); err != nil && err != io.EOF {
				return nil, locate(file, err)
			}
			return root, nil
		case tcss.CommentGrammar:
			current.Children = append(current.Children, &Node{Kind: Comment, Text: string(data)})
		case tcss.AtRuleGrammar:
			current.Children = append(current.Children, &Node{
				Kind:    AtRule,
				Name:    string(data),
				Prelude: valueString(parser.Values()),
			})
		case tcss.BeginAtRuleGrammar:
			block := &Node{Kind: AtBlock, Name: string(data), Prelude: valueString(parser.Values())}
			current.Children = append(current.Children, block)
			stack = append(stack, block)
		case tcss.QualifiedRuleGrammar:
			prelude = appendTokens(prelude, parser.Values())
			prelude = append(prelude, tcss.Token{TokenType: tcss.CommaToken, Data: []byte(",")})
		case tcss.BeginRulesetGrammar:
			prelude = appendTokens(prelude, parser.Values())
			rule := &Node{Kind: Ruleset, Selectors: splitSelectors(prelude)}
			prelude = nil
			current.Children = append(current.Children, rule)
			stack = append(stack, rule)
		case tcss.EndRulesetGrammar, tcss.EndAtRuleGrammar:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case tcss.DeclarationGrammar:
			value, important := declarationValue(parser.Values())
			current.Children = append(current.Children, &Node{
				Kind:      Declaration,
				Property:  strings.ToLower(string(data)),
				Value:     value,
				Important: important,
			})
		case tcss.CustomPropertyGrammar:
			var raw strings.Builder
			for _, t := range parser.Values() {
				raw.Write(t.Data)
			}
			current.Children = append(current.Children, &Node{
				Kind:     Declaration,
				Property: string(data),
				Value:    strings.TrimSpace(raw.String()),
			})
		}
	}
}

func appendTokens(dst, src []tcss.Token) []tcss.Token {
	for _, t := range src {
		dst = append(dst, tcss.Token{TokenType: t.TokenType, Data: append([]byte(nil), t.Data...)})
	}
	return dst
}

func locate(file string, err error) error {
	var perr *parse.Error
	if errors.As(err, &perr) {
		return perrors.NewRenderError(file, perr.Message, nil).WithLocation(file, perr.Line, perr.Column)
	}
	return perrors.NewRenderError(file, "stylesheet parse failed", err)
}

func trimWhitespace(tokens []tcss.Token) []tcss.Token {
	for len(tokens) > 0 && tokens[0].TokenType == tcss.WhitespaceToken {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].TokenType == tcss.WhitespaceToken {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// declarationValue splits a trailing !important off the value tokens.
func declarationValue(tokens []tcss.Token) (string, bool) {
	tokens = trimWhitespace(tokens)
	n := len(tokens)
	if n >= 2 && tokens[n-1].TokenType == tcss.IdentToken && strings.EqualFold(string(tokens[n-1].Data), "important") {
		rest := trimWhitespace(tokens[:n-1])
		if m := len(rest); m > 0 && rest[m-1].TokenType == tcss.DelimToken && string(rest[m-1].Data) == "!" {
			return valueString(rest[:m-1]), true
		}
	}
	return valueString(tokens), false
}

// valueString joins value tokens with collapsed whitespace and a single
// space after commas.
func valueString(tokens []tcss.Token) string {
	tokens = trimWhitespace(tokens)
	var b strings.Builder
	space := false
	for _, t := range tokens {
		switch t.TokenType {
		case tcss.WhitespaceToken:
			space = true
			continue
		case tcss.CommaToken:
			b.WriteByte(',')
			space = true
			continue
		case tcss.RightParenthesisToken:
			space = false
		}
		if space && b.Len() > 0 && !strings.HasSuffix(b.String(), "(") {
			b.WriteByte(' ')
		}
		space = false
		b.Write(t.Data)
	}
	return b.String()
}

// splitSelectors breaks a selector list at top-level commas.
func splitSelectors(tokens []tcss.Token) []string {
	var out []string
	depth, start := 0, 0
	for i, t := range tokens {
		switch t.TokenType {
		case tcss.FunctionToken, tcss.LeftBracketToken, tcss.LeftParenthesisToken:
			depth++
		case tcss.RightBracketToken, tcss.RightParenthesisToken:
			depth--
		case tcss.CommaToken:
			if depth == 0 {
				if sel := selectorString(tokens[start:i]); sel != "" {
					out = append(out, sel)
				}
				start = i + 1
			}
		}
	}
	if sel := selectorString(tokens[start:]); sel != "" {
		out = append(out, sel)
	}
	return out
}

// selectorString joins selector tokens, normalising whitespace around
// combinators.
func selectorString(tokens []tcss.Token) string {
	tokens = trimWhitespace(tokens)
	var b strings.Builder
	space := false
	depth := 0
	for _, t := range tokens {
		switch t.TokenType {
		case tcss.WhitespaceToken:
			space = true
			continue
		case tcss.FunctionToken, tcss.LeftBracketToken, tcss.LeftParenthesisToken:
			depth++
		case tcss.RightBracketToken, tcss.RightParenthesisToken:
			depth--
			space = false
		case tcss.CommaToken:
			b.WriteString(", ")
			space = false
			continue
		case tcss.DelimToken:
			if d := string(t.Data); depth == 0 && (d == ">" || d == "+" || d == "~") {
				b.WriteString(" " + d + " ")
				space = false
				continue
			}
		}
		if space && b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
			b.WriteByte(' ')
		}
		space = false
		b.Write(t.Data)
	}
	return b.String()
}
