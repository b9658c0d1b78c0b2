package storage

import (
	"strconv"
	"strings"
)

// LockKey names a lock in scope. Each part is length-prefixed so no two
// distinct part lists produce the same key, whatever the ids contain.
func LockKey(scope string, parts ...string) string {
	var b strings.Builder
	b.WriteString(scope)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}
