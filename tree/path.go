package tree

import "strings"

// RootPath is the path of the sentinel root whose children are the drives.
const RootPath = "/"

// NormalizePath drops one trailing slash unless the path is a drive root
// such as "E:/" or the sentinel "/".
func NormalizePath(p string) string {
	if len(p) > 3 && strings.HasSuffix(p, "/") {
		return p[:len(p)-1]
	}
	return p
}

// JoinPath builds a child path. Children of the sentinel root are named by
// their drive root alone.
func JoinPath(dir, name string) string {
	if dir == RootPath {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

// SamePath reports whether two paths name the same node.
func SamePath(a, b string) bool {
	return NormalizePath(a) == NormalizePath(b)
}
