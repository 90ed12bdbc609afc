package main

import (
	"github.com/cora-labs/lendsim/pkg/cmd"
)

func main() {
	cmd.Execute()
}
