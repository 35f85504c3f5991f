// Package transport provides the line sources the chat router reads from.
package transport

import (
	"strings"
)

// command returns the upper-cased IRC command of an outgoing line and its
// first argument.
func command(line string) (cmd, arg string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	cmd = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		arg = fields[1]
	}
	return cmd, arg
}
