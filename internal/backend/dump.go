package backend

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/spbuild/internal/process"
)

// Developer-mode dump files
const (
	compilerDump = "CompilerCommand.txt"
	linkerDump   = "LinkerCommand.txt"
)

// dumpCommands writes the synthesized command lines into dir, one per line
func dumpCommands(dir, name string, cmds []process.Command) {
	var b strings.Builder
	for _, c := range cmds {
		b.WriteString(c.String())
		b.WriteString("\n")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warningf("failed to create %s: %v", dir, err)
		return
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		log.Warningf("failed to write %s: %v", path, err)
	}
}
