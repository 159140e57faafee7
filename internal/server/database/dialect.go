package database

import (
	"strconv"
	"strings"
)

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	name       string
	driver     string
	schema     string
	positional bool // $1, $2 ... instead of ?
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		schema: sqliteSchema,
	}
	postgresDialect = dialect{
		name:       "postgres",
		driver:     "pgx",
		schema:     postgresSchema,
		positional: true,
	}
)

// rebind rewrites ? placeholders for dialects that use numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
