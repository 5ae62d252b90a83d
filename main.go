/*
Command-line tool for incremental backup of hosted repositories to
S3-compatible storage.

Usage:

	$ gitvault [<flags>] <subcommand> [<args> ...]

Use 'gitvault help' to see more details.
*/
package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/gitvault/gitvault/cli"
)

func main() {
	app := kingpin.New("gitvault", "Incremental backup of hosted repositories to S3-compatible storage.")

	cli.NewApp().Attach(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
