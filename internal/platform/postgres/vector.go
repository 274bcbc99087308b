package postgres

import (
	"fmt"
	"strconv"
	"strings"
)

// vectorLiteral renders an embedding in pgvector's input syntax, e.g.
// "[0.1,0.2,0.3]".
func vectorLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVector parses pgvector's text representation back into a float slice.
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed vector literal %q", s)
	}

	s = strings.Trim(s, "[]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector element %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
