package module

import "strings"

// Command is a message body split into words: the first word names the
// command and the rest are its arguments.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits body on whitespace. Args is empty, never nil, when
// there are no arguments.
func ParseCommand(body string) Command {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return Command{Args: []string{}}
	}
	return Command{Name: fields[0], Args: append([]string{}, fields[1:]...)}
}

// Arg returns the i-th argument or "" if there is none
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
