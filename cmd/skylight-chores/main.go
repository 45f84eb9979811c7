package main

import (
	"fmt"
	"os"

	// distrolessイメージにはタイムゾーンDBが含まれないため埋め込む
	_ "time/tzdata"

	"github.com/hitoshi/skylight-chores/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
