package main

import (
	"context"
	"os"

	"github.com/infinitymatryoshka/risuai-plugin-builder/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
