// Command smoker smoke tests npm packages the way their users install them
package main

import (
	"context"
	"os"

	"github.com/smoker/smoker/internal/builtin"
	"github.com/smoker/smoker/pkg/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	builtin.Version = version
	os.Exit(cli.Main(context.Background(), version))
}
