package main

import "github.com/peekknuf/datatrust/cmd"

func main() {
	cmd.Execute()
}
