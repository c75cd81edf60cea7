package main

import (
	"os"

	"github.com/alexbotov/clashapi/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
