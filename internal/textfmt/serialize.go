package textfmt

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"metrics-proxy/internal/model"
)

// Serialize writes a document back out, re-emitting its preamble comments
// first and then its families in the order given, preserving HELP/TYPE
// lines and sample order within each family. Families with zero samples
// are dropped entirely, HELP/TYPE included, per spec §4.7/§9.
func Serialize(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)
	for _, line := range doc.Preamble {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	for _, fam := range doc.Families {
		if len(fam.Samples) == 0 {
			continue
		}
		if fam.HasHelp {
			if _, err := bw.WriteString("# HELP " + fam.Name + " " + fam.Help + "\n"); err != nil {
				return err
			}
		}
		if fam.HasType {
			if _, err := bw.WriteString("# TYPE " + fam.Name + " " + string(fam.Type) + "\n"); err != nil {
				return err
			}
		}
		for _, s := range fam.Samples {
			if _, err := bw.WriteString(renderSample(s)); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func renderSample(s model.Sample) string {
	var b strings.Builder
	b.WriteString(s.MetricName)
	if len(s.Labels) > 0 {
		b.WriteByte('{')
		for i, p := range s.Labels {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(p.Name)
			b.WriteString(`="`)
			b.WriteString(escapeLabelValue(p.Value))
			b.WriteByte('"')
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(formatValue(s.Value))
	if s.Timestamp != nil {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(*s.Timestamp, 10))
	}
	return b.String()
}

func escapeLabelValue(v string) string {
	var b strings.Builder
	for _, r := range v {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}
