package document

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dshills/plasmashop/internal/crypt"
	"github.com/dshills/plasmashop/internal/elf"
	"github.com/dshills/plasmashop/internal/selector"
	"github.com/dshills/plasmashop/internal/textenc"
	"github.com/dshills/plasmashop/internal/vfs"
)

var droidKey = crypt.Key{0xDEADBEEF, 0x01234567, 0x89ABCDEF, 0x0BADF00D}

// recordingPrompt answers every request with key, or with err when set.
type recordingPrompt struct {
	key  crypt.Key
	err  error
	reqs []KeyRequest
}

func (p *recordingPrompt) PromptKey(req KeyRequest) (crypt.Key, error) {
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return crypt.Key{}, p.err
	}
	return p.key, nil
}

func newTestDoc(fs *vfs.MemFS, opts ...Option) *TextDocument {
	return New(selector.New(fs, nil), opts...)
}

func sealed(t *testing.T, mode crypt.Mode, key *crypt.Key, plain []byte) []byte {
	t.Helper()
	p, err := crypt.NewProvider(mode, key)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	out, err := p.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return out
}

func TestLoad_DetectsEncoding(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want textenc.Mode
		text string
	}{
		{"ansi", []byte("caf\xe9"), textenc.Ansi, "café"},
		{"utf8 bom", []byte("\xEF\xBB\xBFcafé"), textenc.UTF8, "café"},
		{"utf16", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, textenc.UTF16, "hi"},
		{"utf32", []byte{0xFF, 0xFE, 0, 0, 'o', 0, 0, 0, 'k', 0, 0, 0}, textenc.UTF32, "ok"},
		{"empty", nil, textenc.Ansi, ""},
		{"ef bb without bf", []byte{0xEF, 0xBB, 'x'}, textenc.Ansi, "ï»x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := vfs.NewMemFS()
			fs.AddFile("/doc.txt", tt.data)
			d := newTestDoc(fs)

			if err := d.Load("/doc.txt"); err != nil {
				t.Fatalf("Load: %v", err)
			}
			if d.Encoding() != tt.want {
				t.Errorf("Encoding() = %v, want %v", d.Encoding(), tt.want)
			}
			if d.Text() != tt.text {
				t.Errorf("Text() = %q, want %q", d.Text(), tt.text)
			}
			if d.IsDirty() || d.PersistDirty() || d.ReadOnly() {
				t.Errorf("fresh load: dirty=%v persist=%v readonly=%v", d.IsDirty(), d.PersistDirty(), d.ReadOnly())
			}
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	text := "[Graphics]\r\nWidth=1024 éü\r\n"

	for _, enc := range []textenc.Mode{textenc.Ansi, textenc.UTF8, textenc.UTF16, textenc.UTF32} {
		for _, cm := range []crypt.Mode{crypt.None, crypt.XTEA, crypt.AES, crypt.Droid} {
			t.Run(enc.String()+"/"+cm.String(), func(t *testing.T) {
				fs := vfs.NewMemFS()
				d := newTestDoc(fs, WithEncoding(enc), WithEncryption(cm), WithKeyPrompt(&recordingPrompt{key: droidKey}))
				if err := d.SetText(text); err != nil {
					t.Fatalf("SetText: %v", err)
				}
				if err := d.Save("/out.ini"); err != nil {
					t.Fatalf("Save: %v", err)
				}

				back := newTestDoc(fs, WithKey(droidKey.Ptr()))
				if err := back.Load("/out.ini"); err != nil {
					t.Fatalf("Load: %v", err)
				}
				if back.Text() != text {
					t.Errorf("Text() = %q, want %q", back.Text(), text)
				}
				if back.Encoding() != enc || back.Encryption() != cm {
					t.Errorf("modes = %v/%v, want %v/%v", back.Encoding(), back.Encryption(), enc, cm)
				}
			})
		}
	}
}

func TestSave_AnsiUnchangedBytes(t *testing.T) {
	raw := []byte("x\x81\x8D\x8F\x90\x9D\x80\xFFy")
	fs := vfs.NewMemFS()
	fs.AddFile("/raw.ini", raw)

	d := newTestDoc(fs)
	if err := d.Load("/raw.ini"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Encoding() != textenc.Ansi {
		t.Fatalf("Encoding() = %v, want ANSI", d.Encoding())
	}
	if err := d.Save("/copy.ini"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, _ := fs.ReadFile("/copy.ini"); !bytes.Equal(got, raw) {
		t.Errorf("file = % X, want % X", got, raw)
	}
}

func TestSave_WritesBOM(t *testing.T) {
	fs := vfs.NewMemFS()
	d := newTestDoc(fs, WithEncoding(textenc.UTF16))
	_ = d.SetText("A")
	if err := d.Save("/bom.txt"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := fs.ReadFile("/bom.txt")
	if want := []byte{0xFF, 0xFE, 'A', 0}; !bytes.Equal(got, want) {
		t.Errorf("file = % X, want % X", got, want)
	}
}

func TestLoad_FailureKeepsState(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.AddFile("/good.txt", []byte("\xEF\xBB\xBFgood"))
	fs.AddFile("/odd.txt", []byte{0xFF, 0xFE, 'a', 0, 'b'})
	fs.AddFile("/locked.txt", []byte("x"))
	_ = fs.Chmod("/locked.txt", 0200)

	d := newTestDoc(fs)
	if err := d.Load("/good.txt"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = d.SetText("good, edited")

	tests := []struct {
		path  string
		check func(error) bool
	}{
		{"/missing.txt", selector.IsNotFound},
		{"/locked.txt", selector.IsPermissionDenied},
		{"/odd.txt", func(err error) bool { return errors.Is(err, textenc.ErrMalformedEncoding) }},
	}

	for _, tt := range tests {
		err := d.Load(tt.path)
		if err == nil || !tt.check(err) {
			t.Errorf("Load(%s) err = %v", tt.path, err)
		}
		if d.Path() != "/good.txt" || d.Text() != "good, edited" || !d.IsModified() {
			t.Errorf("Load(%s) changed state: path=%s text=%q", tt.path, d.Path(), d.Text())
		}
	}
}

func TestLoad_DroidPromptsForKey(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.AddFile("/dat/secret.age", sealed(t, crypt.Droid, droidKey.Ptr(), []byte("\xEF\xBB\xBFsecret")))

	prompt := &recordingPrompt{key: droidKey}
	d := newTestDoc(fs, WithKeyPrompt(prompt))
	if err := d.Load("/dat/secret.age"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(prompt.reqs) != 1 || prompt.reqs[0].Op != OpLoad || prompt.reqs[0].Path != "/dat/secret.age" {
		t.Errorf("prompt requests = %+v, want one load request", prompt.reqs)
	}
	if d.Text() != "secret" || d.Encryption() != crypt.Droid {
		t.Errorf("loaded %q under %v", d.Text(), d.Encryption())
	}
	if k := d.Key(); k == nil || *k != droidKey {
		t.Errorf("Key() = %v, want %v", k, droidKey)
	}
}

func TestLoad_DroidCancelled(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.AddFile("/plain.txt", []byte("before"))
	fs.AddFile("/dat/secret.age", sealed(t, crypt.Droid, droidKey.Ptr(), []byte("secret")))

	d := newTestDoc(fs, WithKeyPrompt(&recordingPrompt{err: ErrKeyEntryCancelled}))
	if err := d.Load("/plain.txt"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := d.Load("/dat/secret.age"); !errors.Is(err, ErrKeyEntryCancelled) {
		t.Fatalf("err = %v, want ErrKeyEntryCancelled", err)
	}
	if d.Path() != "/plain.txt" || d.Text() != "before" || d.Encryption() != crypt.None {
		t.Errorf("state changed after cancelled load: %s %q %v", d.Path(), d.Text(), d.Encryption())
	}
}

func TestLoad_DroidWithoutPrompt(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.AddFile("/dat/secret.age", sealed(t, crypt.Droid, droidKey.Ptr(), []byte("secret")))

	err := newTestDoc(fs).Load("/dat/secret.age")
	if !errors.Is(err, crypt.ErrKeyRequired) {
		t.Errorf("err = %v, want ErrKeyRequired", err)
	}
}

func TestSave_DroidPromptRules(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.AddFile("/dat/a.sdl", sealed(t, crypt.Droid, droidKey.Ptr(), []byte("payload")))

	prompt := &recordingPrompt{key: droidKey}
	d := newTestDoc(fs, WithKeyPrompt(prompt), WithKey(droidKey.Ptr()))
	if err := d.Load("/dat/a.sdl"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(prompt.reqs) != 0 {
		t.Fatalf("held key still prompted on load: %+v", prompt.reqs)
	}

	// Same file, key held: no prompt.
	_ = d.SetText("payload v2")
	if err := d.Save("/dat/a.sdl"); err != nil {
		t.Fatalf("Save same path: %v", err)
	}
	if len(prompt.reqs) != 0 {
		t.Errorf("save to same path prompted: %+v", prompt.reqs)
	}

	// New file: prompt before writing, even with a key held.
	if err := d.Save("/dat/b.sdl"); err != nil {
		t.Fatalf("Save new path: %v", err)
	}
	if len(prompt.reqs) != 1 || prompt.reqs[0].Op != OpSave || prompt.reqs[0].Path != "/dat/b.sdl" {
		t.Errorf("prompt requests = %+v, want one save request for b.sdl", prompt.reqs)
	}
	if cur := prompt.reqs[0].Current; cur == nil || *cur != droidKey {
		t.Errorf("request Current = %v, want held key", cur)
	}
	if d.Path() != "/dat/b.sdl" {
		t.Errorf("Path() = %s, want /dat/b.sdl", d.Path())
	}
}

func TestSave_AllZeroKeyIsAKey(t *testing.T) {
	fs := vfs.NewMemFS()
	var zero crypt.Key
	fs.AddFile("/z.sdl", sealed(t, crypt.Droid, &zero, []byte("zero")))

	prompt := &recordingPrompt{}
	d := newTestDoc(fs, WithKeyPrompt(prompt), WithKey(&zero))
	if err := d.Load("/z.sdl"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Text() != "zero" {
		t.Errorf("Text() = %q", d.Text())
	}
	if err := d.Save("/z.sdl"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(prompt.reqs) != 0 {
		t.Errorf("all-zero key treated as unset: %+v", prompt.reqs)
	}
}

func TestSave_CancelledLeavesFile(t *testing.T) {
	fs := vfs.NewMemFS()
	original := []byte("on disk, untouched")
	fs.AddFile("/target.sdl", original)

	d := newTestDoc(fs, WithEncryption(crypt.Droid), WithKeyPrompt(&recordingPrompt{err: ErrKeyEntryCancelled}))
	_ = d.SetText("replacement")

	if err := d.Save("/target.sdl"); !errors.Is(err, ErrKeyEntryCancelled) {
		t.Fatalf("err = %v, want ErrKeyEntryCancelled", err)
	}
	if got, _ := fs.ReadFile("/target.sdl"); !bytes.Equal(got, original) {
		t.Errorf("file = %q, want %q", got, original)
	}
	if !d.IsDirty() || d.Path() != "" {
		t.Errorf("cancelled save changed state: dirty=%v path=%q", d.IsDirty(), d.Path())
	}
}

func TestSave_FailureKeepsDirty(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.AddFile("/doc.txt", []byte("old"))

	d := newTestDoc(fs)
	if err := d.Load("/doc.txt"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = d.SetText("new")
	d.SetEncoding(textenc.UTF16)

	fs.SetWriteError(errors.New("no space left on device"))
	if err := d.Save("/doc.txt"); !errors.Is(err, selector.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	fs.SetWriteError(nil)

	if !d.IsDirty() || !d.IsModified() || !d.PersistDirty() {
		t.Errorf("failed save cleared dirty state: dirty=%v modified=%v persist=%v",
			d.IsDirty(), d.IsModified(), d.PersistDirty())
	}
	if got, _ := fs.ReadFile("/doc.txt"); string(got) != "old" {
		t.Errorf("file = %q, want old", got)
	}
}

func TestPersistDirty(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.AddFile("/doc.txt", []byte("text"))
	d := newTestDoc(fs)
	if err := d.Load("/doc.txt"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	d.SetEncoding(textenc.Ansi)
	d.SetEncryption(crypt.None)
	if d.IsDirty() {
		t.Fatal("setting unchanged modes marked the document dirty")
	}

	d.SetEncryption(crypt.AES)
	if !d.PersistDirty() || !d.IsDirty() || d.IsModified() {
		t.Errorf("after SetEncryption: persist=%v dirty=%v modified=%v", d.PersistDirty(), d.IsDirty(), d.IsModified())
	}

	if err := d.Save("/doc.txt"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if d.IsDirty() || d.PersistDirty() {
		t.Errorf("after Save: dirty=%v persist=%v", d.IsDirty(), d.PersistDirty())
	}
	raw, _ := fs.ReadFile("/doc.txt")
	if mode, ok := crypt.Probe(raw); !ok || mode != crypt.AES {
		t.Errorf("saved file Probe = %v/%v, want AES", mode, ok)
	}

	d.SetEncoding(textenc.UTF32)
	if err := d.Load("/doc.txt"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.PersistDirty() || d.Encoding() != textenc.Ansi {
		t.Errorf("Load did not reset persisted state: persist=%v encoding=%v", d.PersistDirty(), d.Encoding())
	}
}

func TestLoad_EncryptedLogIsReadOnly(t *testing.T) {
	data, err := elf.Encode([]string{"line one", "line two"})
	if err != nil {
		t.Fatalf("elf.Encode: %v", err)
	}
	fs := vfs.NewMemFS()
	fs.AddFile("/log/plasmalog.elf", data)

	d := newTestDoc(fs)
	if err := d.Load("/log/plasmalog.elf"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !d.ReadOnly() || d.Text() != "line one\nline two\n" || d.Encryption() != crypt.None {
		t.Errorf("log doc: readonly=%v text=%q encryption=%v", d.ReadOnly(), d.Text(), d.Encryption())
	}
	if err := d.SetText("edit"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("SetText err = %v, want ErrReadOnly", err)
	}
	if err := d.Save("/log/plasmalog.elf"); !errors.Is(err, selector.ErrReadOnlyFormat) {
		t.Errorf("Save to log err = %v, want ErrReadOnlyFormat", err)
	}

	// Exporting to a regular file makes the copy editable.
	if err := d.Save("/log/plasmalog.txt"); err != nil {
		t.Fatalf("Save export: %v", err)
	}
	if d.ReadOnly() {
		t.Error("exported document still read-only")
	}
	if got, _ := fs.ReadFile("/log/plasmalog.txt"); string(got) != "\xEF\xBB\xBFline one\nline two\n" {
		t.Errorf("export = %q", got)
	}
}

// switchingPrompt answers each request with the next key in keys.
type switchingPrompt struct {
	keys []crypt.Key
	reqs []KeyRequest
}

func (p *switchingPrompt) PromptKey(req KeyRequest) (crypt.Key, error) {
	p.reqs = append(p.reqs, req)
	if len(p.reqs) > len(p.keys) {
		return crypt.Key{}, ErrKeyEntryCancelled
	}
	return p.keys[len(p.reqs)-1], nil
}

func TestLoad_DroidKeyNotReusedAcrossFiles(t *testing.T) {
	keyA := crypt.Key{1, 1, 1, 1}
	keyB := crypt.Key{2, 2, 2, 2}

	fs := vfs.NewMemFS()
	fs.AddFile("/dat/a.sdl", sealed(t, crypt.Droid, &keyA, []byte("file A text")))
	fs.AddFile("/dat/b.sdl", sealed(t, crypt.Droid, &keyB, []byte("file B text")))

	prompt := &switchingPrompt{keys: []crypt.Key{keyA, keyB}}
	d := newTestDoc(fs, WithKeyPrompt(prompt))
	if err := d.Load("/dat/a.sdl"); err != nil {
		t.Fatalf("Load a: %v", err)
	}
	if err := d.Load("/dat/b.sdl"); err != nil {
		t.Fatalf("Load b: %v", err)
	}

	if len(prompt.reqs) != 2 {
		t.Fatalf("prompt requests = %d, want 2", len(prompt.reqs))
	}
	if req := prompt.reqs[1]; req.Op != OpLoad || req.Path != "/dat/b.sdl" || req.Current == nil || *req.Current != keyA {
		t.Errorf("second request = %+v, want load of b.sdl offering key A", req)
	}
	if d.Text() != "file B text" {
		t.Errorf("Text() = %q, want file B text", d.Text())
	}
	if k := d.Key(); k == nil || *k != keyB {
		t.Errorf("Key() = %v, want %v", k, keyB)
	}

	// Saving back to b.sdl uses b's key without asking again.
	_ = d.SetText("file B v2")
	if err := d.Save("/dat/b.sdl"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(prompt.reqs) != 2 {
		t.Errorf("save to the loaded file prompted: %+v", prompt.reqs[2:])
	}
	check := newTestDoc(fs, WithKey(&keyB))
	if err := check.Load("/dat/b.sdl"); err != nil || check.Text() != "file B v2" {
		t.Errorf("reopen with key B = %q, %v", check.Text(), err)
	}

	// Reload of the same file keeps the bound key.
	if err := d.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(prompt.reqs) != 2 {
		t.Errorf("Reload prompted: %+v", prompt.reqs[2:])
	}
}

func TestLoad_DroidCancelAfterOtherFileKeepsState(t *testing.T) {
	keyA := crypt.Key{1, 1, 1, 1}

	fs := vfs.NewMemFS()
	fs.AddFile("/dat/a.sdl", sealed(t, crypt.Droid, &keyA, []byte("file A text")))
	fs.AddFile("/dat/b.sdl", sealed(t, crypt.Droid, &crypt.Key{2, 2, 2, 2}, []byte("file B text")))

	d := newTestDoc(fs, WithKeyPrompt(&switchingPrompt{keys: []crypt.Key{keyA}}))
	if err := d.Load("/dat/a.sdl"); err != nil {
		t.Fatalf("Load a: %v", err)
	}
	if err := d.Load("/dat/b.sdl"); !errors.Is(err, ErrKeyEntryCancelled) {
		t.Fatalf("Load b err = %v, want ErrKeyEntryCancelled", err)
	}
	if d.Path() != "/dat/a.sdl" || d.Text() != "file A text" {
		t.Errorf("state changed: %s %q", d.Path(), d.Text())
	}
}

func TestSave_DroidKeyBoundToOtherFilePrompts(t *testing.T) {
	keyA := crypt.Key{1, 1, 1, 1}
	keyC := crypt.Key{3, 3, 3, 3}

	fs := vfs.NewMemFS()
	fs.AddFile("/dat/a.sdl", sealed(t, crypt.Droid, &keyA, []byte("file A text")))
	fs.AddFile("/dat/c.txt", []byte("plain"))

	prompt := &switchingPrompt{keys: []crypt.Key{keyA, keyC}}
	d := newTestDoc(fs, WithKeyPrompt(prompt))
	if err := d.Load("/dat/a.sdl"); err != nil {
		t.Fatalf("Load a: %v", err)
	}
	if err := d.Load("/dat/c.txt"); err != nil {
		t.Fatalf("Load c: %v", err)
	}
	if len(prompt.reqs) != 1 {
		t.Fatalf("plain load prompted: %+v", prompt.reqs)
	}

	d.SetEncryption(crypt.Droid)
	if err := d.Save("/dat/c.txt"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(prompt.reqs) != 2 || prompt.reqs[1].Op != OpSave {
		t.Fatalf("prompt requests = %+v, want a save request", prompt.reqs)
	}
	check := newTestDoc(fs, WithKey(&keyC))
	if err := check.Load("/dat/c.txt"); err != nil || check.Text() != "plain" {
		t.Errorf("reopen with key C = %q, %v", check.Text(), err)
	}
}

func TestReloadAndExternalChanges(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.AddFile("/doc.txt", []byte("v1"))
	d := newTestDoc(fs)

	if err := d.Reload(); !errors.Is(err, ErrNoPath) {
		t.Errorf("Reload before load err = %v, want ErrNoPath", err)
	}
	if err := d.Load("/doc.txt"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	changed, err := d.HasExternalChanges()
	if err != nil || changed {
		t.Errorf("HasExternalChanges() = %v, %v; want false", changed, err)
	}

	fs.AddFile("/doc.txt", []byte("v2"))
	changed, err = d.HasExternalChanges()
	if err != nil || !changed {
		t.Errorf("HasExternalChanges() = %v, %v; want true", changed, err)
	}

	_ = d.SetText("local edit")
	if err := d.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if d.Text() != "v2" || d.IsDirty() {
		t.Errorf("after Reload: text=%q dirty=%v", d.Text(), d.IsDirty())
	}

	_ = fs.Remove("/doc.txt")
	if changed, _ := d.HasExternalChanges(); !changed {
		t.Error("removed file not reported as changed")
	}
}

func TestKeyAccessorsCopy(t *testing.T) {
	d := newTestDoc(vfs.NewMemFS())
	if d.Key() != nil {
		t.Fatal("new document holds a key")
	}

	k := droidKey
	d.SetKey(&k)
	k[0] = 0
	if got := d.Key(); got == nil || *got != droidKey {
		t.Errorf("Key() = %v, want %v", got, droidKey)
	}

	d.SetKey(nil)
	if d.Key() != nil {
		t.Error("SetKey(nil) did not clear the key")
	}
}

func TestKeyPromptFunc(t *testing.T) {
	var called bool
	p := KeyPromptFunc(func(req KeyRequest) (crypt.Key, error) {
		called = true
		return droidKey, nil
	})
	k, err := p.PromptKey(KeyRequest{Op: OpSave})
	if err != nil || k != droidKey || !called {
		t.Errorf("PromptKey = %v, %v (called=%v)", k, err, called)
	}
}
