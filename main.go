package main

import "github.com/hotaket/ollamabridge/cmd"

func main() {
	cmd.Execute()
}
