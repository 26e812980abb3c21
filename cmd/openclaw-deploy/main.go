package main

import (
	"github.com/openclaw/openclaw-deploy/internal/cli"
)

func main() {
	cli.Main()
}
