package vfs

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemFS implements VFS using an in-memory file system.
// It is primarily used for testing. Directories are implicit.
//
// A file whose mode lacks the owner read (write) bit fails reads (writes)
// with fs.ErrPermission, and SetWriteError injects a failure into every
// following write, so error paths can be exercised without a real disk.
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu       sync.RWMutex
	files    map[string]*memFile
	writeErr error
	lastMod  time.Time
}

type memFile struct {
	content []byte
	mode    fs.FileMode
	modTime time.Time
}

// NewMemFS creates a new in-memory file system.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]*memFile)}
}

// Ensure MemFS implements VFS.
var _ VFS = (*MemFS)(nil)

// ReadFile reads the entire file content.
func (m *MemFS) ReadFile(filePath string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	f, ok := m.files[filePath]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: fs.ErrNotExist}
	}
	if f.mode&0400 == 0 {
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: fs.ErrPermission}
	}

	// Return a copy to prevent modification
	content := make([]byte, len(f.content))
	copy(content, f.content)
	return content, nil
}

// Stat returns file information.
func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	f, ok := m.files[filePath]
	if !ok {
		return FileInfo{}, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
	}
	return NewFileInfo(filePath, path.Base(filePath), int64(len(f.content)), f.mode, f.modTime, false), nil
}

// WriteFileAtomic replaces the file content in one step.
func (m *MemFS) WriteFileAtomic(filePath string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = m.cleanPath(filePath)
	if m.writeErr != nil {
		return &fs.PathError{Op: "write", Path: filePath, Err: m.writeErr}
	}
	if f, ok := m.files[filePath]; ok {
		if f.mode&0200 == 0 {
			return &fs.PathError{Op: "write", Path: filePath, Err: fs.ErrPermission}
		}
		perm = f.mode
	}

	content := make([]byte, len(data))
	copy(content, data)
	m.files[filePath] = &memFile{content: content, mode: perm, modTime: m.tick()}
	return nil
}

// Remove removes a file.
func (m *MemFS) Remove(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = m.cleanPath(filePath)
	if _, ok := m.files[filePath]; !ok {
		return &fs.PathError{Op: "remove", Path: filePath, Err: fs.ErrNotExist}
	}
	delete(m.files, filePath)
	return nil
}

// Exists returns true if the path exists.
func (m *MemFS) Exists(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[m.cleanPath(filePath)]
	return ok
}

// Abs returns the cleaned, rooted path.
func (m *MemFS) Abs(filePath string) (string, error) {
	return m.cleanPath(filePath), nil
}

// AddFile is a convenience method for adding files during setup.
func (m *MemFS) AddFile(filePath string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([]byte, len(content))
	copy(data, content)
	m.files[m.cleanPath(filePath)] = &memFile{content: data, mode: 0644, modTime: m.tick()}
}

// Chmod changes the permission bits of a file.
func (m *MemFS) Chmod(filePath string, mode fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[m.cleanPath(filePath)]
	if !ok {
		return &fs.PathError{Op: "chmod", Path: filePath, Err: fs.ErrNotExist}
	}
	f.mode = mode
	return nil
}

// SetWriteError makes every following write fail with err.
// Pass nil to clear.
func (m *MemFS) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Files returns all file paths in the file system.
// Useful for testing and debugging.
func (m *MemFS) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]string, 0, len(m.files))
	for f := range m.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// tick returns a modification time strictly after the previous one.
// Caller must hold the write lock.
func (m *MemFS) tick() time.Time {
	now := time.Now()
	if !now.After(m.lastMod) {
		now = m.lastMod.Add(time.Nanosecond)
	}
	m.lastMod = now
	return now
}

// cleanPath normalizes a path.
func (m *MemFS) cleanPath(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
