package pachfs

import (
	"path"
	"strings"
)

// normPath cleans a filesystem path into absolute slash form. "." and ""
// denote the root, ".." segments are resolved and cannot climb above it.
func normPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." {
		return "/"
	}
	return path.Clean("/" + p)
}

// pathToKey converts a filesystem path to a backend key: the scoped root
// prefix is prepended and slashes become the configured delimiter. The
// root path maps to the bare prefix (possibly the empty key).
func (pachFS *FS) pathToKey(p string) string {
	rel := strings.TrimPrefix(normPath(p), "/")
	key := strings.Trim(pachFS.prefix+"/"+rel, "/")
	return strings.ReplaceAll(key, "/", pachFS.delimiter)
}

// pathToDirKey is pathToKey with a trailing delimiter, denoting a prefix
// scan root. The filesystem root with an empty prefix yields the empty key.
func (pachFS *FS) pathToDirKey(p string) string {
	key := pachFS.pathToKey(p)
	if key == "" {
		return ""
	}
	return key + pachFS.delimiter
}

// keyToPath is the inverse mapping. Round-tripping holds for keys produced
// by pathToKey; external keys with the delimiter embedded in a segment are
// not distinguishable from nested paths.
func (pachFS *FS) keyToPath(key string) string {
	p := strings.ReplaceAll(key, pachFS.delimiter, "/")
	return normPath(p)
}
