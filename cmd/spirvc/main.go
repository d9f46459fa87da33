// Command spirvc compiles shader sources to SPIR-V.
//
// Usage:
//
//	spirvc compile [options] <input>...
//	spirvc inspect [options] <file.spv>...
//	spirvc watch [options] <input>...
//	spirvc serve [options]
//
// Examples:
//
//	spirvc compile shaders/blit.frag            # writes shaders/blit.frag.spv
//	spirvc compile -o tri.spv tri.vert.wgsl     # WGSL through naga
//	spirvc inspect --disasm tri.spv             # disassembly listing
package main

import (
	"os"

	"github.com/gogpu/spirvc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
