package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rivo/uniseg"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/plasmashop/internal/crypt"
	"github.com/dshills/plasmashop/internal/document"
	"github.com/dshills/plasmashop/internal/textenc"
	"github.com/dshills/plasmashop/internal/watcher"
)

// errUsage is returned after a command has printed its own usage error.
var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(a *app, args []string) error
}

var commands = map[string]command{
	"cat":     {"Print the decoded text of a file", runCat},
	"info":    {"Show encoding, encryption and size of a file", runInfo},
	"convert": {"Rewrite a file with another encoding, encryption or line ending", runConvert},
	"write":   {"Save stdin as a file using the configured document settings", runWrite},
	"watch":   {"Report changes to files until interrupted", runWatch},
}

var commandOrder = []string{"cat", "info", "convert", "write", "watch"}

// flagSet returns a flag set for a subcommand that reports errors on
// stderr and never exits.
func (a *app) flagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: plasmashop %s [options] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func (a *app) parse(fs *flag.FlagSet, args []string, nargs int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if nargs >= 0 && fs.NArg() != nargs {
		fmt.Fprintf(a.stderr, "Error: %s takes %d argument(s), got %d\n", fs.Name(), nargs, fs.NArg())
		fs.Usage()
		return nil, errUsage
	}
	return fs.Args(), nil
}

func (a *app) newDocument(opts ...document.Option) *document.TextDocument {
	base := []document.Option{
		document.WithKeyPrompt(a.prompt),
		document.WithLogger(a.log),
		document.WithKey(a.key),
	}
	return document.New(a.sel, append(base, opts...)...)
}

func (a *app) open(path string) (*document.TextDocument, error) {
	d := a.newDocument()
	if err := d.Load(path); err != nil {
		return nil, err
	}
	return d, nil
}

func runCat(a *app, args []string) error {
	fs := a.flagSet("cat", "FILE")
	files, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}

	d, err := a.open(files[0])
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.stdout, d.Text())
	return err
}

func runInfo(a *app, args []string) error {
	fs := a.flagSet("info", "FILE")
	asJSON := fs.Bool("json", false, "Print as JSON")
	compact := fs.Bool("compact", false, "With -json, print on one line")
	files, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}

	d, err := a.open(files[0])
	if err != nil {
		return err
	}

	text := d.Text()
	var size int64
	if fi, err := a.sel.FS().Stat(d.Path()); err == nil {
		size = fi.Size()
	}

	fields := []struct {
		key   string
		value any
	}{
		{"id", d.ID.String()},
		{"path", d.Path()},
		{"encoding", d.Encoding().String()},
		{"encryption", d.Encryption().String()},
		{"readOnly", d.ReadOnly()},
		{"size", size},
		{"lines", textenc.CountLines(text)},
		{"graphemes", uniseg.GraphemeClusterCount(text)},
		{"lineEnding", string(textenc.DetectLineEnding(text))},
	}

	if *asJSON {
		out := "{}"
		for _, f := range fields {
			if out, err = sjson.Set(out, f.key, f.value); err != nil {
				return err
			}
		}
		if *compact {
			_, err = fmt.Fprintln(a.stdout, out)
			return err
		}
		_, err = a.stdout.Write(pretty.Pretty([]byte(out)))
		return err
	}

	for _, f := range fields {
		if _, err := fmt.Fprintf(a.stdout, "%-11s %v\n", f.key+":", f.value); err != nil {
			return err
		}
	}
	return nil
}

// docFlags are the document settings shared by convert and write.
type docFlags struct {
	encoding   *string
	encryption *string
	eol        *string
}

func addDocFlags(fs *flag.FlagSet, encoding, encryption, eol string) docFlags {
	return docFlags{
		encoding:   fs.String("encoding", encoding, "Text encoding (ansi, utf-8, utf-16, utf-32)"),
		encryption: fs.String("encryption", encryption, "Encryption (none, xtea, aes, droid)"),
		eol:        fs.String("eol", eol, "Line ending (keep, lf, crlf, cr)"),
	}
}

// apply sets every non-empty flag on d.
func (f docFlags) apply(d *document.TextDocument) error {
	if *f.encoding != "" {
		mode, err := textenc.ParseMode(*f.encoding)
		if err != nil {
			return err
		}
		d.SetEncoding(mode)
	}
	if *f.encryption != "" {
		mode, err := crypt.ParseMode(*f.encryption)
		if err != nil {
			return err
		}
		d.SetEncryption(mode)
	}
	if *f.eol != "" {
		le, err := textenc.ParseLineEnding(*f.eol)
		if err != nil {
			return err
		}
		return d.SetText(textenc.NormalizeLineEndings(d.Text(), le))
	}
	return nil
}

func runConvert(a *app, args []string) error {
	fs := a.flagSet("convert", "IN OUT")
	flags := addDocFlags(fs, "", "", "")
	files, err := a.parse(fs, args, 2)
	if err != nil {
		return err
	}

	d, err := a.open(files[0])
	if err != nil {
		return err
	}
	if d.ReadOnly() {
		// Log exports become ordinary documents on save.
		a.log.Info("exporting read-only document", "path", d.Path())
	}
	if err := flags.apply(d); err != nil {
		return err
	}
	return d.Save(files[1])
}

func runWrite(a *app, args []string) error {
	doc := a.cfg.Document
	fs := a.flagSet("write", "FILE")
	flags := addDocFlags(fs, doc.Encoding, doc.Encryption, doc.LineEnding)
	files, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}

	text, err := io.ReadAll(a.stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	d := a.newDocument()
	if err := d.SetText(string(text)); err != nil {
		return err
	}
	if err := flags.apply(d); err != nil {
		return err
	}
	return d.Save(files[0])
}

func runWatch(a *app, args []string) error {
	fs := a.flagSet("watch", "FILE...")
	files, err := a.parse(fs, args, -1)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fs.Usage()
		return errUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.watch(ctx, files)
}

// watch loads files, then reloads and reports each one as it changes
// until ctx is done.
func (a *app) watch(ctx context.Context, files []string) error {
	w, err := watcher.New(
		watcher.WithDebounceDelay(a.cfg.Watch.DebounceDelay),
		watcher.WithBufferSize(a.cfg.Watch.BufferSize),
		watcher.WithLogger(a.log),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	docs := make(map[string]*document.TextDocument, len(files))
	for _, path := range files {
		d, err := a.open(path)
		if err != nil {
			return err
		}
		if err := w.Watch(d.Path()); err != nil {
			return fmt.Errorf("watching %s: %w", d.Path(), err)
		}
		docs[d.Path()] = d
		fmt.Fprintf(a.stdout, "watching %s (%s, %s)\n", d.Path(), d.Encoding(), d.Encryption())
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			a.log.Warn("watcher error", "err", err)

		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			d := docs[ev.Path]
			if d == nil {
				continue
			}
			a.report(d, ev)
		}
	}
}

func (a *app) report(d *document.TextDocument, ev watcher.Event) {
	changed, err := d.HasExternalChanges()
	if err != nil || !changed {
		return
	}
	if ev.Gone() && !a.sel.FS().Exists(d.Path()) {
		fmt.Fprintf(a.stdout, "%s: removed\n", d.Path())
		return
	}
	if err := d.Reload(); err != nil {
		fmt.Fprintf(a.stdout, "%s: changed, reload failed: %v\n", d.Path(), err)
		return
	}
	fmt.Fprintf(a.stdout, "%s: changed (%s, %s, %d lines)\n",
		d.Path(), d.Encoding(), d.Encryption(), textenc.CountLines(d.Text()))
}
