package main

import (
	"os"

	"github.com/mna/mainer"
	"github.com/mna/rustlox/internal/maincmd"
)

func main() {
	c := &maincmd.Cmd{}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
