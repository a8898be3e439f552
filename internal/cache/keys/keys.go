// Package keys builds Redis keys for cached responses and geocoder lookups.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

const (
	prefix = "olc"
	// bump when the cached payload layout changes
	schema = "v1"

	maxTextLen = 96
)

// Map keys a /map response. Coordinates enter the hash at full precision so
// boxes that differ below the display precision never share an entry.
func Map(b model.BBox, in, out model.EPSG, mode model.Mode, level int, pretty bool) string {
	var sb strings.Builder
	for i, v := range []float64{b.SW.X, b.SW.Y, b.NE.X, b.NE.Y} {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	raw := sb.String()
	return fmt.Sprintf("%s:%s:map:%d:%d:%s:l%d:p%t:%s:h=%016x",
		prefix, schema, int(in), int(out), mode, level, pretty, sanitize(raw), xxhash.Sum64String(raw))
}

// Location keys a / response for a normalised query string.
func Location(query string, in, out model.EPSG, regional bool) string {
	q := strings.ToUpper(collapseASCIIWhitespace(query))
	return fmt.Sprintf("%s:%s:loc:%d:%d:r%t:%s:h=%016x",
		prefix, schema, int(in), int(out), regional, sanitize(q), xxhash.Sum64String(q))
}

// Forward keys a municipality name lookup; names compare case-insensitively.
func Forward(name string) string {
	n := strings.ToLower(collapseASCIIWhitespace(name))
	return fmt.Sprintf("%s:geo:fwd:%s:h=%016x", prefix, sanitize(n), xxhash.Sum64String(n))
}

// Reverse keys a municipality lookup by the spatial cell the point falls in.
func Reverse(cell string) string {
	return fmt.Sprintf("%s:geo:rev:%s", prefix, sanitize(cell))
}

// sanitize keeps a readable, bounded, ASCII-only rendition of s; the hash
// suffix carries the identity.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '.' || r == '_' || r == '-' || r == ',' || r == '+':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	res := b.String()
	if len(res) > maxTextLen {
		res = res[:maxTextLen]
	}
	return res
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
