// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Entry point for rdrun

package main

import "github.com/quantfold/rdagent-runner/cmd"

func main() {
	cmd.Execute()
}
