package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// isTTY reports whether w is a terminal. codexcore has no interactive UI,
// but it uses this signal to decide whether a subcommand's default output
// should be a human summary (TTY) or structured JSON (piped/redirected,
// i.e. scripted).
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
