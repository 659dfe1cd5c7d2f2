package lineproto

import (
	"strings"

	"github.com/aaronlmathis/vsflux/internal/aggregate"
)

// lineEnd terminates every line. The trailing space is expected by the
// existing ingestion pipeline.
const lineEnd = " \n"

// Encode serializes the identity block and every non-empty namespace group
// into line protocol. Output is byte-identical for identical input.
func Encode(id Identity, groups *aggregate.Groups) string {
	var b strings.Builder

	b.WriteString(id.Measurement)
	for _, tag := range id.Tags {
		b.WriteByte(',')
		b.WriteString(tag.Key)
		b.WriteByte('=')
		b.WriteString(tag.Value)
	}
	b.WriteByte(' ')
	writeFields(&b, id.Fields)
	b.WriteString(lineEnd)

	if groups == nil {
		return b.String()
	}

	for _, group := range groups.All() {
		if group.Len() == 0 {
			continue
		}
		b.WriteString(NamespacePrefix)
		b.WriteString(group.Namespace)
		b.WriteString(",host=")
		b.WriteString(id.Host)
		b.WriteByte(' ')
		writeFields(&b, group.Fields())
		b.WriteString(lineEnd)
	}

	return b.String()
}

func writeFields(b *strings.Builder, fields []aggregate.Field) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value.String())
	}
}

// CountLines returns the number of records in an encoded blob
func CountLines(blob string) int {
	return strings.Count(blob, "\n")
}
