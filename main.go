package main

import "github.com/codenamed22/DupliGone/cmd"

func main() {
	cmd.Execute()
}
