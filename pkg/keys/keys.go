// Package keys builds deterministic entity keys from a type tag and natural identifiers.
package keys

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator joins the type tag and every key part.
const Separator = ":"

var escaper = strings.NewReplacer(`\`, `\\`, Separator, `\`+Separator)

// Build returns "<typeTag>:<part>[:<part>...]". Each part is escaped so a separator inside a
// natural identifier can never make two different part lists produce the same key.
// Parts must be strings or integers; callers pass identifiers as-is, nothing is normalized.
func Build(typeTag string, parts ...any) string {
	var b strings.Builder
	b.WriteString(typeTag)
	for _, part := range parts {
		b.WriteString(Separator)
		b.WriteString(escaper.Replace(formatPart(part)))
	}
	return b.String()
}

func formatPart(part any) string {
	switch v := part.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
