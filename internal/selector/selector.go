// Package selector decides which backing stream services a document file.
//
// Reads classify the file as one of three kinds, in this order:
//
//  1. an encrypted log (.elf): decoded line by line and presented as
//     read-only plain text;
//  2. a Plasma encrypted container: opened through the crypt provider the
//     container magic names; droid containers need a key first;
//  3. anything else: a plain byte stream.
//
// Writes collect the payload in memory and only touch the destination on
// Commit, which replaces it atomically. Abandoning a Writer leaves the file
// exactly as it was.
package selector

import (
	"errors"
	"strings"
	"time"

	"github.com/dshills/plasmashop/internal/crypt"
	"github.com/dshills/plasmashop/internal/elf"
	"github.com/dshills/plasmashop/internal/logging"
	"github.com/dshills/plasmashop/internal/stream"
	"github.com/dshills/plasmashop/internal/vfs"
)

// Kind classifies how a file was opened.
type Kind int

const (
	// PlainFile is an unencrypted byte stream.
	PlainFile Kind = iota
	// EncryptedFile is a Plasma encrypted container.
	EncryptedFile
	// EncryptedLogFile is a read-only encrypted log.
	EncryptedLogFile
)

// String returns the display name of the kind.
func (k Kind) String() string {
	switch k {
	case PlainFile:
		return "plain"
	case EncryptedFile:
		return "encrypted"
	case EncryptedLogFile:
		return "encrypted-log"
	default:
		return "unknown"
	}
}

// Handle is an opened file ready for reading.
type Handle struct {
	// Path is the file that was opened.
	Path string

	// Kind is how the file was classified.
	Kind Kind

	// Mode is the container encryption. Always crypt.None for plain files
	// and encrypted logs.
	Mode crypt.Mode

	// ReadOnly is set for formats that cannot be written back.
	ReadOnly bool

	// ModTime is the file's modification time on disk.
	ModTime time.Time

	// Stream holds the decrypted payload, positioned at offset 0.
	Stream stream.Stream
}

// Close releases the handle's stream.
func (h *Handle) Close() error {
	h.Stream = nil
	return nil
}

// Selector opens document files through the right backing stream.
type Selector struct {
	fs  vfs.VFS
	log *logging.Logger
}

// New creates a selector over fs. A nil logger discards output.
func New(fs vfs.VFS, log *logging.Logger) *Selector {
	return &Selector{fs: fs, log: logging.OrNop(log).WithComponent("selector")}
}

// FS returns the file system the selector reads and writes.
func (s *Selector) FS() vfs.VFS {
	return s.fs
}

// OpenForRead opens path for reading.
//
// key is only consulted for droid containers; when it is nil the returned
// error wraps crypt.ErrKeyRequired and the caller may retry with a key.
func (s *Selector) OpenForRead(path string, key *crypt.Key) (*Handle, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, fsError("open", path, err)
	}

	h := &Handle{Path: path}
	if info, err := s.fs.Stat(path); err == nil {
		h.ModTime = info.ModTime()
	}

	switch mode, encrypted := crypt.Probe(data); {
	case elf.IsLogPath(path):
		lines, err := elf.Decode(data)
		if err != nil {
			return nil, NewPathError("decode", path, errors.Join(ErrCorrupt, err))
		}
		var b strings.Builder
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		h.Kind = EncryptedLogFile
		h.ReadOnly = true
		h.Stream = stream.NewMemStream([]byte(b.String()))

	case encrypted:
		provider, err := crypt.NewProvider(mode, key)
		if err != nil {
			return nil, NewPathError("open", path, err)
		}
		plain, err := provider.Open(data)
		if err != nil {
			return nil, NewPathError("decrypt", path, errors.Join(ErrCorrupt, err))
		}
		h.Kind = EncryptedFile
		h.Mode = mode
		h.Stream = stream.NewMemStream(plain)

	default:
		h.Kind = PlainFile
		h.Stream = stream.NewMemStream(data)
	}

	s.log.Debug("opened for read", "path", path, "kind", h.Kind, "encryption", h.Mode, "bytes", h.Stream.Size())
	return h, nil
}

// Writer collects a payload and writes it to disk on Commit.
type Writer struct {
	*stream.MemStream

	sel      *Selector
	path     string
	provider crypt.Provider
	done     bool
}

// OpenForWrite prepares a write of path under mode.
//
// Droid mode with a nil key fails with crypt.ErrKeyRequired before anything
// is written. The destination is not opened until Commit.
func (s *Selector) OpenForWrite(path string, mode crypt.Mode, key *crypt.Key) (*Writer, error) {
	if elf.IsLogPath(path) {
		return nil, NewPathError("write", path, ErrReadOnlyFormat)
	}
	provider, err := crypt.NewProvider(mode, key)
	if err != nil {
		return nil, NewPathError("write", path, err)
	}
	return &Writer{
		MemStream: stream.NewMemStream(nil),
		sel:       s,
		path:      path,
		provider:  provider,
	}, nil
}

// Path returns the destination path.
func (w *Writer) Path() string {
	return w.path
}

// Commit seals the collected payload and replaces the destination.
func (w *Writer) Commit() error {
	if w.done {
		return NewPathError("write", w.path, ErrWriterClosed)
	}
	w.done = true

	sealed, err := w.provider.Seal(w.Bytes())
	if err != nil {
		return NewPathError("encrypt", w.path, err)
	}
	if err := w.sel.fs.WriteFileAtomic(w.path, sealed, 0644); err != nil {
		return fsError("write", w.path, err)
	}

	w.sel.log.Debug("committed write", "path", w.path, "encryption", w.provider.Mode(), "bytes", len(sealed))
	return nil
}

// Close abandons the write if it was not committed.
func (w *Writer) Close() error {
	w.done = true
	return nil
}
