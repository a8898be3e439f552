package router

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// maxBodyBytes caps form and JSON bodies.
const maxBodyBytes = 1 << 20

// params looks request parameters up in the query string, a form body and a
// JSON object body, in that order.
type params struct {
	query map[string][]string
	form  map[string][]string
	json  map[string]any
}

func readParams(r *http.Request) (params, error) {
	p := params{query: r.URL.Query()}
	if r.Method != http.MethodPost || r.Body == nil {
		return p, nil
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = body
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && err != http.ErrNotMultipart {
			return p, fmt.Errorf("parse form body: %w", err)
		}
		p.form = r.PostForm
	default:
		raw, err := io.ReadAll(body)
		if err != nil {
			return p, fmt.Errorf("read body: %w", err)
		}
		if len(strings.TrimSpace(string(raw))) == 0 {
			return p, nil
		}
		if err := json.Unmarshal(raw, &p.json); err != nil {
			return p, fmt.Errorf("parse JSON body: %w", err)
		}
	}
	return p, nil
}

// get returns the named parameter and whether it was supplied at all.
func (p params) get(name string) (string, bool) {
	if vs, ok := p.query[name]; ok && len(vs) > 0 {
		return vs[0], true
	}
	if vs, ok := p.form[name]; ok && len(vs) > 0 {
		return vs[0], true
	}
	if v, ok := p.json[name]; ok && v != nil {
		switch t := v.(type) {
		case string:
			return t, true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(t), true
		default:
			return fmt.Sprint(t), true
		}
	}
	return "", false
}

var digitsPattern = regexp.MustCompile(`\d+`)

// extractDigits pulls the first run of digits out of values like "EPSG:25833".
// Text without digits is returned unchanged.
func extractDigits(s string) string {
	if d := digitsPattern.FindString(s); d != "" {
		return d
	}
	return s
}

func parseEPSG(p params, name string, def int) (int, error) {
	raw, ok := p.get(name)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(extractDigits(strings.TrimSpace(raw)))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("value of optional '%s' parameter is not a number", name)
	}
	return n, nil
}

// parseBool accepts the usual spellings; anything else reports ok=false.
func parseBool(s string) (v, ok bool) {
	switch strings.TrimSpace(s) {
	case "1", "t", "T", "true", "True", "TRUE", "y", "yes":
		return true, true
	case "0", "f", "F", "false", "False", "FALSE", "n", "no":
		return false, true
	}
	return false, false
}

const codeAlphabet = "23456789CFGHJMPQRVWX"

var codePrefixPattern = regexp.MustCompile(`(?i)^[` + codeAlphabet + `0]{4,8}$`)

func isPair(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range strings.ToUpper(s) {
		if !strings.ContainsRune(codeAlphabet, r) {
			return false
		}
	}
	return true
}

// normalizeQuery turns separators into single commas and restores a "+"
// that URL decoding turned into a space ("7FG49QCJ 2V" -> "7FG49QCJ+2V").
func normalizeQuery(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", ",")
	var parts []string
	for part := range strings.SplitSeq(s, ",") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if n := len(out); n > 0 && isPair(part) && len(out[n-1])%2 == 0 && codePrefixPattern.MatchString(out[n-1]) {
			out[n-1] += "+" + part
			continue
		}
		out = append(out, part)
	}
	return strings.Join(out, ",")
}

// splitRegional separates "code,locality" in either order by the part that
// holds the separator; the other parts form the locality.
func splitRegional(query string) (code, locality string, ok bool) {
	var rest []string
	for part := range strings.SplitSeq(query, ",") {
		if code == "" && strings.Contains(part, "+") {
			code = part
			continue
		}
		rest = append(rest, part)
	}
	if code == "" || len(rest) == 0 {
		return "", "", false
	}
	return code, strings.Join(rest, " "), true
}

func parseFloats(s string, n int) ([]float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
