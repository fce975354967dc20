package transfer

import (
	"os"
	"path/filepath"
	"strings"
)

// JoinRemote appends name to a remote directory path.
func JoinRemote(dir, name string) string {
	if dir == "" {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

// RemoteBase returns the last element of a remote path.
func RemoteBase(p string) string {
	p = strings.TrimSuffix(p, "/")
	return p[strings.LastIndex(p, "/")+1:]
}

// ExpandUpload turns a local file or directory into upload operations
// targeting remoteDir. A directory becomes a CreateFolder followed by the
// operations for each of its entries, depth first, entries in name order.
func ExpandUpload(local, remoteDir string) ([]Operation, error) {
	info, err := os.Stat(local)
	if err != nil {
		return nil, &LocalIOError{Op: "stat", Path: local, Err: err}
	}

	root := JoinRemote(remoteDir, filepath.Base(local))
	if !info.IsDir() {
		return []Operation{Upload(local, root)}, nil
	}

	type item struct {
		local  string
		remote string
		dir    bool
	}

	var ops []Operation
	stack := []item{{local: local, remote: root, dir: true}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !it.dir {
			ops = append(ops, Upload(it.local, it.remote))
			continue
		}

		ops = append(ops, CreateFolder(it.remote))
		entries, err := os.ReadDir(it.local)
		if err != nil {
			return nil, &LocalIOError{Op: "readdir", Path: it.local, Err: err}
		}
		// Pushed in reverse so the first name is popped first.
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			stack = append(stack, item{
				local:  filepath.Join(it.local, e.Name()),
				remote: JoinRemote(it.remote, e.Name()),
				dir:    e.IsDir(),
			})
		}
	}

	return ops, nil
}

// DownloadOps builds one download per remote path into localDir, keeping
// each file's base name.
func DownloadOps(remotePaths []string, localDir string) []Operation {
	ops := make([]Operation, 0, len(remotePaths))
	for _, p := range remotePaths {
		ops = append(ops, Download(p, filepath.Join(localDir, RemoteBase(p))))
	}
	return ops
}

// DeleteOps builds one delete per remote path.
func DeleteOps(remotePaths []string) []Operation {
	ops := make([]Operation, 0, len(remotePaths))
	for _, p := range remotePaths {
		ops = append(ops, Delete(p))
	}
	return ops
}
