// Package arff reads and writes frames in the Attribute-Relation File
// Format: a commented header, one @ATTRIBUTE line per column and
// comma-separated @DATA rows with ? for missing values.
package arff

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/surrogate/internal/frame"
)

// Write serialises f as relation. Each comment becomes a "% " line ahead of
// the header. Nominal columns declare their levels in order of first
// appearance; numeric columns are NUMERIC.
func Write(w io.Writer, relation string, comments []string, f *frame.Frame) error {
	bw := bufio.NewWriter(w)
	for _, c := range comments {
		fmt.Fprintf(bw, "%% %s\n", c)
	}
	fmt.Fprintf(bw, "@RELATION %s\n\n", quote(relation))

	rows, cols := f.Shape()
	for j := 0; j < cols; j++ {
		c := f.At(j)
		if !c.Nominal {
			fmt.Fprintf(bw, "@ATTRIBUTE %s NUMERIC\n", quote(c.Name))
			continue
		}
		levels := c.Levels()
		for i, l := range levels {
			levels[i] = quote(l)
		}
		fmt.Fprintf(bw, "@ATTRIBUTE %s {%s}\n", quote(c.Name), strings.Join(levels, ", "))
	}

	bw.WriteString("\n@DATA\n")
	fields := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := range fields {
			c := f.At(j)
			if c.Missing(i) || !c.Nominal {
				fields[j] = c.Format(i)
			} else {
				fields[j] = quote(c.Str[i])
			}
		}
		bw.WriteString(strings.Join(fields, ","))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// quote wraps s in single quotes when it would not survive as a bare token.
func quote(s string) string {
	if s != "" && s != "?" && !strings.ContainsAny(s, " \t\r\n,{}%'\"\\") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return "'" + r.Replace(s) + "'"
}
