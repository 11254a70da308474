package main

import "github.com/naka-gawa/git-line-diffs/cmd"

func main() {
	cmd.Execute()
}
