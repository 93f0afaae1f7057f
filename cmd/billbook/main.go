package main

import (
	"context"
	"os"

	"github.com/roach88/billbook/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
