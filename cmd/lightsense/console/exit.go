package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit formats msg and terminates the command with code.
func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// Fail reports err as the reason what went wrong and exits with code 1.
func Fail(what string, err error) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf("%s: %s", what, Red(err)), 1)
}
