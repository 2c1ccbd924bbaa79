package project

// File holds the contents of a single tree entry.
type File struct {
	Contents string `json:"contents"`
}

// TreeEntry wraps a File in the wire shape the frontend and the assistant
// both emit: {"file": {"contents": "..."}}.
type TreeEntry struct {
	File File `json:"file"`
}

// FileTree maps flat path-like keys to file contents. No nested-directory
// invariant is enforced; "src/index.js" is just a key.
type FileTree map[string]TreeEntry

// Clone returns an independent copy of the tree.
func (t FileTree) Clone() FileTree {
	if t == nil {
		return nil
	}
	out := make(FileTree, len(t))
	for path, entry := range t {
		out[path] = entry
	}
	return out
}

// Set replaces the contents of a single file, creating the entry if absent.
func (t FileTree) Set(path, contents string) {
	t[path] = TreeEntry{File: File{Contents: contents}}
}

// Get returns the contents of a file and whether it exists.
func (t FileTree) Get(path string) (string, bool) {
	entry, ok := t[path]
	return entry.File.Contents, ok
}
