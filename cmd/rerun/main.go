package main

import "github.com/nfrund/rerun/cmd/rerun/cmd"

func main() {
	cmd.Execute()
}
