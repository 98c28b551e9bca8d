package adb

import (
	"path"
	"path/filepath"
	"strings"
)

// RemotePath normalizes a device path. Backslashes become forward slashes and
// the path is cleaned, but a trailing slash is kept: push and pull treat
// "dir/" and "dir" differently.
func RemotePath(remote string) string {
	remote = strings.ReplaceAll(strings.TrimSpace(remote), `\`, "/")
	cleaned := path.Clean(remote)
	if strings.HasSuffix(remote, "/") && !strings.HasSuffix(cleaned, "/") {
		return cleaned + "/"
	}
	return cleaned
}

// LocalPath normalizes a host path.
func LocalPath(local string) string {
	return filepath.Clean(local)
}
