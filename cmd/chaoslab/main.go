package main

import "github.com/vietddude/chaoslab/internal/cli"

func main() {
	cli.Execute()
}
