package helpers

import (
	"strings"

	"github.com/larkmail/lark/consts"
)

var delimiter = string(consts.MailboxDelimiter)

// JoinMailboxPath builds a user-visible dotted path from hierarchy segments.
func JoinMailboxPath(segments ...string) string {
	return strings.Join(segments, delimiter)
}

// IsSubPath reports whether child lives strictly below parent in the
// hierarchy. An empty parent is the root, parent of every non-empty path.
func IsSubPath(child, parent string) bool {
	if parent == "" {
		return child != ""
	}
	return strings.HasPrefix(child, parent+delimiter)
}

// RewritePathPrefix replaces the oldPrefix hierarchy prefix of path with
// newPrefix, preserving the relative suffix. The path itself maps to
// newPrefix.
func RewritePathPrefix(path, oldPrefix, newPrefix string) string {
	if path == oldPrefix {
		return newPrefix
	}
	if IsSubPath(path, oldPrefix) {
		return newPrefix + path[len(oldPrefix):]
	}
	return path
}
