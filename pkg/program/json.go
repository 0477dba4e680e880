package program

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Statement trees cross tool boundaries (front ends, the CLI) as JSON with a
// "type" discriminator per node. Expressions are strings: a leading "$"
// marks a property path ("$user.name"); anything else is a literal.

type jsonStatement struct {
	Type string `json:"type"`

	// text / comment / open / attr
	Content string `json:"content,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Name    string `json:"name,omitempty"`
	Value   string `json:"value,omitempty"`

	// append / attr / if / each / choose
	Expr      string `json:"expr,omitempty"`
	KnownText bool   `json:"knownText,omitempty"`

	// choose: value when the condition holds, alt otherwise
	Alt string `json:"alt,omitempty"`

	Then []jsonStatement `json:"then,omitempty"`
	Else []jsonStatement `json:"else,omitempty"`

	Key  string          `json:"key,omitempty"`
	As   string          `json:"as,omitempty"`
	Memo string          `json:"memo,omitempty"`
	Body []jsonStatement `json:"body,omitempty"`

	// component
	Kind string            `json:"kind,omitempty"`
	Args map[string]string `json:"args,omitempty"`
}

// ParseExpression decodes the JSON expression shorthand.
func ParseExpression(s string) Expression {
	if strings.HasPrefix(s, "$") {
		path := strings.TrimPrefix(s, "$")
		if path == "" {
			return &PathExpression{Segments: nil}
		}
		return &PathExpression{Segments: strings.Split(path, ".")}
	}
	return &StringLiteral{Value: s}
}

// UnmarshalStatements decodes a JSON statement tree.
func UnmarshalStatements(data []byte) ([]Statement, error) {
	var nodes []jsonStatement
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("program: parse statement tree: %w", err)
	}
	return convertStatements(nodes)
}

func convertStatements(nodes []jsonStatement) ([]Statement, error) {
	out := make([]Statement, 0, len(nodes))
	for _, n := range nodes {
		s, err := convertStatement(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s...)
	}
	return out, nil
}

func convertStatement(n jsonStatement) ([]Statement, error) {
	switch n.Type {
	case "text":
		return []Statement{&Text{Content: n.Content}}, nil

	case "comment":
		return []Statement{&Comment{Content: n.Content}}, nil

	case "append":
		return []Statement{&Append{Expr: ParseExpression(n.Expr), KnownText: n.KnownText}}, nil

	case "choose":
		return []Statement{&Append{
			Expr: &IfExpression{
				Cond: ParseExpression(n.Expr),
				Then: ParseExpression(n.Value),
				Else: ParseExpression(n.Alt),
			},
			KnownText: n.KnownText,
		}}, nil

	case "open":
		return []Statement{&OpenElement{Tag: n.Tag}}, nil

	case "attr":
		if n.Expr != "" {
			return []Statement{&DynamicAttr{Name: n.Name, Expr: ParseExpression(n.Expr)}}, nil
		}
		return []Statement{&StaticAttr{Name: n.Name, Value: n.Value}}, nil

	case "flush":
		return []Statement{&FlushElement{}}, nil

	case "close":
		return []Statement{&CloseElement{}}, nil

	case "if":
		then, err := convertStatements(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := convertStatements(n.Else)
		if err != nil {
			return nil, err
		}
		return []Statement{&If{Cond: ParseExpression(n.Expr), Then: then, Else: els}}, nil

	case "each":
		body, err := convertStatements(n.Body)
		if err != nil {
			return nil, err
		}
		return []Statement{&Each{
			List:      ParseExpression(n.Expr),
			KeyPath:   n.Key,
			ValueName: n.As,
			MemoName:  n.Memo,
			Body:      body,
		}}, nil

	case "component":
		c := &Component{Kind: n.Kind}
		// Sorted argument order keeps compilation deterministic.
		names := make([]string, 0, len(n.Args))
		for name := range n.Args {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c.Args = append(c.Args, NamedArg{Name: name, Expr: ParseExpression(n.Args[name])})
		}
		return []Statement{c}, nil

	default:
		return nil, fmt.Errorf("program: unknown statement type %q", n.Type)
	}
}
