// Package document loads and saves Plasma text documents.
//
// A TextDocument owns the decoded text of one file together with the
// encoding and encryption it is stored under. Load and Save are the only
// operations that touch disk; both either complete or leave the document
// exactly as it was before the call.
//
// Besides unsaved edits a document tracks a persist-dirty flag: changing
// the encoding or encryption marks the file as needing a rewrite even when
// the text itself is unchanged.
package document

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dshills/plasmashop/internal/crypt"
	"github.com/dshills/plasmashop/internal/logging"
	"github.com/dshills/plasmashop/internal/selector"
	"github.com/dshills/plasmashop/internal/stream"
	"github.com/dshills/plasmashop/internal/textenc"
)

// Standard errors returned by the document package.
var (
	// ErrKeyEntryCancelled is returned by a KeyPrompt when the user declines
	// to enter a key. Load and Save pass it through unchanged.
	ErrKeyEntryCancelled = errors.New("key entry cancelled")

	// ErrReadOnly indicates an edit of a read-only document.
	ErrReadOnly = errors.New("document is read-only")

	// ErrNoPath indicates a reload of a document that was never loaded or
	// saved.
	ErrNoPath = errors.New("document has no path")
)

// Operation names the document call that needs a key.
type Operation string

const (
	OpLoad Operation = "load"
	OpSave Operation = "save"
)

// KeyRequest describes why a key is needed.
type KeyRequest struct {
	Op   Operation
	Path string

	// Current is the key the document holds, or nil.
	Current *crypt.Key
}

// KeyPrompt obtains droid key material from the user.
// Returning ErrKeyEntryCancelled aborts the pending load or save.
type KeyPrompt interface {
	PromptKey(req KeyRequest) (crypt.Key, error)
}

// KeyPromptFunc adapts a function to KeyPrompt.
type KeyPromptFunc func(req KeyRequest) (crypt.Key, error)

// PromptKey calls f.
func (f KeyPromptFunc) PromptKey(req KeyRequest) (crypt.Key, error) {
	return f(req)
}

// TextDocument is a text file opened for editing.
//
// TextDocument is safe for concurrent use, but Load and Save are
// serialized: the prompt hook runs with the document locked.
type TextDocument struct {
	mu sync.RWMutex

	// ID identifies the document for the lifetime of the process.
	ID uuid.UUID

	sel    *selector.Selector
	prompt KeyPrompt
	log    *logging.Logger

	path       string
	text       string
	savedText  string
	encoding   textenc.Mode
	encryption crypt.Mode
	key        *crypt.Key
	keyPath    string // file the key last opened or sealed; "" if supplied directly
	readOnly   bool
	persist    bool
	modTime    time.Time
}

// Option configures a TextDocument.
type Option func(*TextDocument)

// WithKeyPrompt sets the hook used when droid key material is missing.
func WithKeyPrompt(p KeyPrompt) Option {
	return func(d *TextDocument) {
		d.prompt = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *TextDocument) {
		d.log = l
	}
}

// WithEncoding sets the initial encoding of a new document.
func WithEncoding(mode textenc.Mode) Option {
	return func(d *TextDocument) {
		d.encoding = mode
	}
}

// WithEncryption sets the initial encryption of a new document.
func WithEncryption(mode crypt.Mode) Option {
	return func(d *TextDocument) {
		d.encryption = mode
	}
}

// WithKey sets the initial droid key.
func WithKey(key *crypt.Key) Option {
	return func(d *TextDocument) {
		d.key = copyKey(key)
	}
}

// New creates an empty, unloaded document that reads and writes through sel.
// New documents default to UTF-8 without encryption.
func New(sel *selector.Selector, opts ...Option) *TextDocument {
	d := &TextDocument{
		ID:       uuid.New(),
		sel:      sel,
		encoding: textenc.UTF8,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logging.OrNop(d.log).WithComponent("document").WithField("doc", d.ID.String())
	return d
}

// loaded is the state a successful Load installs in one step.
type loaded struct {
	path       string
	text       string
	encoding   textenc.Mode
	encryption crypt.Mode
	key        *crypt.Key
	readOnly   bool
	modTime    time.Time
}

// Load replaces the document with the contents of path.
//
// Droid containers are opened with the held key only when it belongs to
// path: it was supplied directly or last used with the same file. Otherwise
// the prompt hook is asked, offering the held key as the current one. On
// any failure the document keeps its previous state.
func (d *TextDocument) Load(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	abs, err := d.sel.FS().Abs(path)
	if err != nil {
		return err
	}

	st, err := d.read(abs, d.heldKeyFor(abs))
	if err != nil {
		d.log.Warn("load failed", "path", abs, "err", err)
		return err
	}

	d.path = st.path
	d.text = st.text
	d.savedText = st.text
	d.encoding = st.encoding
	d.encryption = st.encryption
	if st.encryption.NeedsKey() {
		d.key = st.key
		d.keyPath = abs
	}
	d.readOnly = st.readOnly
	d.modTime = st.modTime
	d.persist = false

	d.log.Info("loaded", "path", abs, "encoding", st.encoding, "encryption", st.encryption, "read_only", st.readOnly)
	return nil
}

func (d *TextDocument) read(path string, key *crypt.Key) (*loaded, error) {
	h, err := d.sel.OpenForRead(path, key)
	for selector.IsKeyRequired(err) {
		k, perr := d.askKey(OpLoad, path)
		if perr != nil {
			return nil, perr
		}
		key = &k
		h, err = d.sel.OpenForRead(path, key)
	}
	if err != nil {
		return nil, err
	}
	defer h.Close()

	st := &loaded{
		path:       path,
		encryption: h.Mode,
		readOnly:   h.ReadOnly,
		modTime:    h.ModTime,
		key:        copyKey(key),
	}

	if h.Kind == selector.EncryptedLogFile {
		raw, err := stream.ReadRest(h.Stream)
		if err != nil {
			return nil, selector.NewPathError("read", path, fmt.Errorf("%w: %w", selector.ErrIO, err))
		}
		st.text, st.encoding = decodeLog(raw)
		return st, nil
	}

	st.encoding = textenc.Detect(h.Stream)
	body, err := stream.ReadRest(h.Stream)
	if err != nil {
		return nil, selector.NewPathError("read", path, fmt.Errorf("%w: %w", selector.ErrIO, err))
	}
	st.text, err = textenc.Decode(body, st.encoding)
	if err != nil {
		return nil, selector.NewPathError("decode", path, err)
	}
	return st, nil
}

// decodeLog keeps UTF-8 log text as is and reads anything else as ANSI.
func decodeLog(raw []byte) (string, textenc.Mode) {
	if utf8.Valid(raw) {
		return string(raw), textenc.UTF8
	}
	text, _ := textenc.Decode(raw, textenc.Ansi)
	return text, textenc.Ansi
}

// Save writes the document to path under its current encoding and
// encryption.
//
// A droid document saved to a different path than it was loaded from, or
// without a held key, prompts for a key first. Cancelling the prompt
// returns ErrKeyEntryCancelled and nothing is written. On any failure the
// document stays dirty and the file on disk is unchanged.
func (d *TextDocument) Save(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	abs, err := d.sel.FS().Abs(path)
	if err != nil {
		return err
	}

	key := d.heldKeyFor(abs)
	if d.encryption.NeedsKey() && (abs != d.path || key == nil) {
		k, err := d.askKey(OpSave, abs)
		if err != nil {
			return err
		}
		key = &k
	}

	if err := d.write(abs, key); err != nil {
		d.log.Warn("save failed", "path", abs, "err", err)
		return err
	}

	d.path = abs
	d.savedText = d.text
	d.persist = false
	d.readOnly = false
	if d.encryption.NeedsKey() {
		d.key = copyKey(key)
		d.keyPath = abs
	}
	if info, err := d.sel.FS().Stat(abs); err == nil {
		d.modTime = info.ModTime()
	}

	d.log.Info("saved", "path", abs, "encoding", d.encoding, "encryption", d.encryption)
	return nil
}

func (d *TextDocument) write(path string, key *crypt.Key) error {
	body, err := textenc.Encode(d.text, d.encoding)
	if err != nil {
		return selector.NewPathError("encode", path, err)
	}

	w, err := d.sel.OpenForWrite(path, d.encryption, key)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := textenc.WriteBOM(w, d.encoding); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	return w.Commit()
}

// heldKeyFor returns the held key if it may be used for path without
// asking. A key bound to another file never is. Caller must hold the lock.
func (d *TextDocument) heldKeyFor(path string) *crypt.Key {
	if d.key == nil || (d.keyPath != "" && d.keyPath != path) {
		return nil
	}
	return d.key
}

// askKey runs the prompt hook. Caller must hold the lock.
func (d *TextDocument) askKey(op Operation, path string) (crypt.Key, error) {
	if d.prompt == nil {
		return crypt.Key{}, selector.NewPathError(string(op), path, crypt.ErrKeyRequired)
	}
	d.log.Debug("prompting for key", "op", op, "path", path)
	key, err := d.prompt.PromptKey(KeyRequest{Op: op, Path: path, Current: copyKey(d.key)})
	if err != nil {
		if errors.Is(err, ErrKeyEntryCancelled) {
			d.log.Info("key entry cancelled", "op", op, "path", path)
		}
		return crypt.Key{}, err
	}
	return key, nil
}

// Reload discards edits and reads the document's file again.
func (d *TextDocument) Reload() error {
	d.mu.RLock()
	path := d.path
	d.mu.RUnlock()

	if path == "" {
		return ErrNoPath
	}
	return d.Load(path)
}

// HasExternalChanges reports whether the file on disk was modified since
// the document last loaded or saved it. A removed file counts as changed.
func (d *TextDocument) HasExternalChanges() (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.path == "" {
		return false, ErrNoPath
	}
	info, err := d.sel.FS().Stat(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return !info.ModTime().Equal(d.modTime), nil
}

// Path returns the file the document was loaded from or saved to.
func (d *TextDocument) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// Text returns the document text.
func (d *TextDocument) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// SetText replaces the document text.
func (d *TextDocument) SetText(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.readOnly {
		return ErrReadOnly
	}
	d.text = text
	return nil
}

// Encoding returns the encoding used on the next save.
func (d *TextDocument) Encoding() textenc.Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.encoding
}

// SetEncoding changes the encoding used on the next save.
func (d *TextDocument) SetEncoding(mode textenc.Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if mode != d.encoding {
		d.encoding = mode
		d.persist = true
	}
}

// Encryption returns the encryption used on the next save.
func (d *TextDocument) Encryption() crypt.Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.encryption
}

// SetEncryption changes the encryption used on the next save.
func (d *TextDocument) SetEncryption(mode crypt.Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if mode != d.encryption {
		d.encryption = mode
		d.persist = true
	}
}

// Key returns a copy of the held droid key, or nil.
func (d *TextDocument) Key() *crypt.Key {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyKey(d.key)
}

// SetKey sets the droid key used by the next load or save. Nil clears it.
func (d *TextDocument) SetKey(key *crypt.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.key = copyKey(key)
	d.keyPath = ""
}

// ReadOnly returns true if the document cannot be edited.
func (d *TextDocument) ReadOnly() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readOnly
}

// IsModified returns true if the text differs from the last save point.
func (d *TextDocument) IsModified() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text != d.savedText
}

// PersistDirty returns true if the encoding or encryption changed since
// the last load or save.
func (d *TextDocument) PersistDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.persist
}

// IsDirty returns true if saving would change the file.
func (d *TextDocument) IsDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.persist || d.text != d.savedText
}

func copyKey(k *crypt.Key) *crypt.Key {
	if k == nil {
		return nil
	}
	c := *k
	return &c
}
