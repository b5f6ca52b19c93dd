package main

import (
	_ "github.com/tliron/commonlog/simple"

	"github.com/Norgate-AV/spbuild/cmd"
)

func main() {
	cmd.Execute()
}
