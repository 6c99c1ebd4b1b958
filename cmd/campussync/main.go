package main

import (
	"campussync/cmd/campussync/commands"
	"campussync/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
