package main

import (
	"fmt"
	"os"

	"github.com/plesk/debian11to12/cmd/debian11to12/cmd"
	"github.com/plesk/debian11to12/internal/registry"
	"github.com/plesk/debian11to12/internal/upgrader/debian11to12"
)

func main() {
	if err := registry.Register(debian11to12.NewFactory()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "register upgrader: %v\n", err)
		os.Exit(1)
	}

	cmd.Execute()
}
