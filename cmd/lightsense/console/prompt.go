package console

import (
	"strings"

	"github.com/chzyer/readline"
)

// Confirm asks a yes/no question on the terminal. Anything but an explicit
// yes, including an empty line, is a no.
func Confirm(question string) (bool, error) {
	rl, err := readline.New(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	defer func() { _ = rl.Close() }()
	answer, err := rl.Readline()
	if err != nil {
		return false, err
	}
	return affirmative(answer), nil
}

func affirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
