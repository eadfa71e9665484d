package arff

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/surrogate/internal/frame"
)

// ErrSyntax is returned for input that is not ARFF this package understands.
var ErrSyntax = errors.New("arff syntax error")

type attribute struct {
	name    string
	nominal bool
	levels  map[string]bool
}

// Read parses an ARFF document into a frame and returns the relation name.
// Sparse data and date or string attributes are not supported.
func Read(r io.Reader) (*frame.Frame, string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	var relation string
	var attrs []attribute
	inData := false
	var num [][]float64
	var str [][]string
	line := 0

	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "%") {
			continue
		}
		if !inData {
			keyword, rest, _ := strings.Cut(text, " ")
			switch strings.ToUpper(keyword) {
			case "@RELATION":
				name, _, err := token(strings.TrimSpace(rest))
				if err != nil {
					return nil, "", fmt.Errorf("%w: line %d: %v", ErrSyntax, line, err)
				}
				relation = name
			case "@ATTRIBUTE":
				a, err := parseAttribute(strings.TrimSpace(rest))
				if err != nil {
					return nil, "", fmt.Errorf("%w: line %d: %v", ErrSyntax, line, err)
				}
				attrs = append(attrs, a)
			case "@DATA":
				inData = true
				num = make([][]float64, len(attrs))
				str = make([][]string, len(attrs))
			default:
				return nil, "", fmt.Errorf("%w: line %d: unexpected %q", ErrSyntax, line, keyword)
			}
			continue
		}

		fields, err := splitFields(text)
		if err != nil {
			return nil, "", fmt.Errorf("%w: line %d: %v", ErrSyntax, line, err)
		}
		if len(fields) != len(attrs) {
			return nil, "", fmt.Errorf("%w: line %d: %d values for %d attributes", ErrSyntax, line, len(fields), len(attrs))
		}
		for j, fld := range fields {
			a := attrs[j]
			missing := !fld.quoted && fld.text == "?"
			if a.nominal {
				v := fld.text
				if missing {
					v = ""
				} else if !a.levels[v] {
					return nil, "", fmt.Errorf("%w: line %d: %q is not a level of %s", ErrSyntax, line, v, a.name)
				}
				str[j] = append(str[j], v)
				continue
			}
			v := math.NaN()
			if !missing {
				v, err = strconv.ParseFloat(fld.text, 64)
				if err != nil {
					return nil, "", fmt.Errorf("%w: line %d: %s: %v", ErrSyntax, line, a.name, err)
				}
			}
			num[j] = append(num[j], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, "", err
	}
	if !inData {
		return nil, "", fmt.Errorf("%w: no @DATA section", ErrSyntax)
	}

	rows := 0
	if len(attrs) > 0 {
		rows = max(len(num[0]), len(str[0]))
	}
	f := frame.New(rows)
	for j, a := range attrs {
		var err error
		if a.nominal {
			err = f.AddNominal(a.name, str[j])
		} else {
			err = f.AddNumeric(a.name, num[j])
		}
		if err != nil {
			return nil, "", err
		}
	}
	return f, relation, nil
}

func parseAttribute(s string) (attribute, error) {
	name, rest, err := token(s)
	if err != nil {
		return attribute{}, err
	}
	rest = strings.TrimSpace(rest)
	a := attribute{name: name}
	switch strings.ToUpper(rest) {
	case "NUMERIC", "REAL", "INTEGER":
		return a, nil
	}
	if !strings.HasPrefix(rest, "{") || !strings.HasSuffix(rest, "}") {
		return attribute{}, fmt.Errorf("unsupported type %q for %s", rest, name)
	}
	fields, err := splitFields(rest[1 : len(rest)-1])
	if err != nil {
		return attribute{}, err
	}
	a.nominal = true
	a.levels = make(map[string]bool, len(fields))
	for _, f := range fields {
		a.levels[f.text] = true
	}
	return a, nil
}

type field struct {
	text   string
	quoted bool
}

// splitFields splits a comma-separated list, honouring quotes.
func splitFields(s string) ([]field, error) {
	var out []field
	for {
		s = strings.TrimLeft(s, " \t")
		if s != "" && (s[0] == '\'' || s[0] == '"') {
			tok, rest, err := token(s)
			if err != nil {
				return nil, err
			}
			out = append(out, field{text: tok, quoted: true})
			rest = strings.TrimLeft(rest, " \t")
			if rest == "" {
				return out, nil
			}
			if rest[0] != ',' {
				return nil, fmt.Errorf("expected ',' before %q", rest)
			}
			s = rest[1:]
			continue
		}
		tok, rest, found := strings.Cut(s, ",")
		out = append(out, field{text: strings.TrimSpace(tok)})
		if !found {
			return out, nil
		}
		s = rest
	}
}

// token reads one bare or quoted token from the start of s.
func token(s string) (string, string, error) {
	if s == "" {
		return "", "", nil
	}
	q := s[0]
	if q != '\'' && q != '"' {
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			return s, "", nil
		}
		return s[:i], s[i:], nil
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
		case c == q:
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
		}
	}
	return "", "", fmt.Errorf("unterminated quote in %q", s)
}
