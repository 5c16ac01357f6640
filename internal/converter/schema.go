package converter

import (
	"fmt"
	"strconv"
	"strings"
)

// Parquet physical types used for inferred columns.
const (
	TypeInt64  = "INT64"
	TypeDouble = "DOUBLE"
	TypeString = "BYTE_ARRAY"
)

// Schema holds the cleaned column names and their inferred Parquet types.
type Schema struct {
	Columns []string
	Types   []string
}

// Metadata renders the schema in the tag form parquet-go's CSV writer expects.
func (s Schema) Metadata() []string {
	meta := make([]string, len(s.Columns))
	for i, name := range s.Columns {
		if s.Types[i] == TypeString {
			meta[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", name)
		} else {
			meta[i] = fmt.Sprintf("name=%s, type=%s, repetitiontype=OPTIONAL", name, s.Types[i])
		}
	}
	return meta
}

// inferSchema picks, per column, the narrowest type that every non-empty
// sample value fits: INT64, then DOUBLE, then BYTE_ARRAY. Columns with no
// non-empty samples are strings.
func inferSchema(header []string, samples [][]string) Schema {
	s := Schema{Columns: make([]string, len(header)), Types: make([]string, len(header))}
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := cleanHeader(h, i)
		// parquet-go rejects duplicate names.
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		s.Columns[i] = name
	}

	for j := range header {
		typ := ""
		for _, row := range samples {
			val := row[j]
			if val == "" {
				continue
			}
			typ = widen(typ, valueType(val))
			if typ == TypeString {
				break
			}
		}
		if typ == "" {
			typ = TypeString
		}
		s.Types[j] = typ
	}
	return s
}

func valueType(val string) string {
	// Codes such as zip "02139" lose meaning as numbers.
	if len(val) > 1 && val[0] == '0' && val[1] != '.' {
		return TypeString
	}
	if _, err := strconv.ParseInt(val, 10, 64); err == nil {
		return TypeInt64
	}
	if _, err := strconv.ParseFloat(val, 64); err == nil {
		return TypeDouble
	}
	return TypeString
}

func widen(current, next string) string {
	rank := map[string]int{"": 0, TypeInt64: 1, TypeDouble: 2, TypeString: 3}
	if rank[next] > rank[current] {
		return next
	}
	return current
}

// fits reports whether val can be written into a column of typ.
func fits(typ, val string) bool {
	switch typ {
	case TypeInt64:
		_, err := strconv.ParseInt(val, 10, 64)
		return err == nil
	case TypeDouble:
		_, err := strconv.ParseFloat(val, 64)
		return err == nil
	default:
		return true
	}
}

func cleanHeader(h string, i int) string {
	clean := strings.NewReplacer(" ", "_", ".", "_", ";", "_", ",", "_", "=", "_").Replace(strings.TrimSpace(h))
	if clean == "" {
		clean = fmt.Sprintf("column_%d", i)
	}
	return clean
}
