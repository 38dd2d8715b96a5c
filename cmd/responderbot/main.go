// Command responderbot runs the Slack pattern responder.
//
//	@title			Responder Bot Admin API
//	@version		1.0
//	@description	Manage the pattern responders that answer Slack messages.
//	@BasePath		/api/v1
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tbourn/go-responder-bot/internal/cli"
)

func main() {
	root := cli.NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
