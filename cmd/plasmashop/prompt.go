package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dshills/plasmashop/internal/crypt"
	"github.com/dshills/plasmashop/internal/document"
)

// keyPrompt answers document key requests.
//
// A key given on the command line or in the config is returned without
// asking. Otherwise the key is read from the terminal without echo, or as
// one line from a non-terminal stdin. An empty answer cancels.
type keyPrompt struct {
	preset *crypt.Key
	in     *bufio.Reader
	file   *os.File
	out    io.Writer
}

func newKeyPrompt(preset *crypt.Key, in io.Reader, out io.Writer) *keyPrompt {
	p := &keyPrompt{preset: preset, in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.file = f
	}
	return p
}

// PromptKey implements document.KeyPrompt.
func (p *keyPrompt) PromptKey(req document.KeyRequest) (crypt.Key, error) {
	if p.preset != nil {
		return *p.preset, nil
	}

	fmt.Fprintf(p.out, "Droid key to %s %s: ", req.Op, req.Path)
	line, err := p.readLine()
	fmt.Fprintln(p.out)
	if err != nil && !errors.Is(err, io.EOF) {
		return crypt.Key{}, err
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return crypt.Key{}, document.ErrKeyEntryCancelled
	}
	return crypt.ParseKey(line)
}

func (p *keyPrompt) readLine() (string, error) {
	if p.file != nil {
		b, err := term.ReadPassword(int(p.file.Fd()))
		return string(b), err
	}
	return p.in.ReadString('\n')
}
