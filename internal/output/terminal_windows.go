//go:build windows

package output

import (
	"os"

	"github.com/mattn/go-isatty"
)

// checkIsTerminal treats Cygwin/MSYS pipes as terminals so mintty gets live
// output.
func checkIsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
