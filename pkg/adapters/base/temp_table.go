package base

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// TokenLength is the fixed length of a temp table token.
const TokenLength = 13

// NewToken returns a random base-36 token of TokenLength characters.
// The 122 random bits of a v4 UUID are folded to 64 bits with xxh3 so the
// token stays short enough to fit next to a readable table name.
func NewToken() string {
	id := uuid.New()
	token := strconv.FormatUint(xxh3.Hash(id[:]), 36)
	if len(token) < TokenLength {
		token = strings.Repeat("0", TokenLength-len(token)) + token
	}
	return token
}

// GenerateTempTableName builds "<prefix><target>_<token>" within maxLen bytes.
// Only the target part is truncated, so the token always survives.
// Characters outside [A-Za-z0-9_] in target are replaced by '_'.
func GenerateTempTableName(prefix, target string, maxLen int) string {
	token := NewToken()

	budget := maxLen - len(prefix) - 1 - len(token)
	if budget < 0 {
		budget = 0
	}

	name := sanitize(target)
	if len(name) > budget {
		name = name[:budget]
	}
	if name == "" {
		return prefix + "t" + token
	}
	return prefix + name + "_" + token
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
