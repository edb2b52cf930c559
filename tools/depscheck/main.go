package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// replayCore lists the packages that must advance a run purely from the seed
// and the drained command order. Shared seeds replay only while these stay
// free of wall clocks, ambient randomness, and the transport layer.
var replayCore = map[string]struct{}{
	"drift-and-dredge/server/internal/journal": {},
	"drift-and-dredge/server/internal/loot":    {},
	"drift-and-dredge/server/internal/pity":    {},
	"drift-and-dredge/server/internal/player":  {},
	"drift-and-dredge/server/internal/rarity":  {},
	"drift-and-dredge/server/internal/rng":     {},
	"drift-and-dredge/server/internal/shop":    {},
	"drift-and-dredge/server/internal/world":   {},
}

var forbidden = []string{
	"math/rand",
	"math/rand/v2",
	"time",
	"net/http",
	"github.com/gorilla/websocket",
	"drift-and-dredge/server/internal/net",
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}

		if _, core := replayCore[pkg.ImportPath]; !core {
			continue
		}
		for _, imp := range pkg.Imports {
			if bannedImport(imp) {
				violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
			}
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func bannedImport(path string) bool {
	for _, banned := range forbidden {
		if path == banned || strings.HasPrefix(path, banned+"/") {
			return true
		}
	}
	return false
}
