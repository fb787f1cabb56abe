package wire

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedFrame indicates a command line with no ":" separator or an
// unrecognized command name.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// ParseCommandLine splits a line of the form "NAME:ARG" (without its
// trailing newline) into its command and tail. An unrecognized command
// name is reported as ErrMalformedFrame.
func ParseCommandLine(line string) (cmd Command, tail string, err error) {
	idx := strings.IndexByte(line, ':')
	if idx == -1 {
		return "", "", ErrMalformedFrame
	}
	cmd = Command(line[:idx])
	if !cmd.Valid() {
		return "", "", ErrMalformedFrame
	}
	return cmd, line[idx+1:], nil
}

// FormatCommandLine renders a command with an inline argument or empty
// tail into the "NAME:ARG" line (without trailing newline).
func FormatCommandLine(cmd Command, arg string) string {
	return string(cmd) + ":" + arg
}

// FormatLengthLine renders a command announcing a following length-mode
// payload of n bytes.
func FormatLengthLine(cmd Command, n int) string {
	return string(cmd) + ":" + strconv.Itoa(n)
}

// parsePositiveLength reports whether tail is the decimal encoding of a
// positive integer, returning it if so.
func parsePositiveLength(tail string) (int, bool) {
	if tail == "" {
		return 0, false
	}
	n, err := strconv.Atoi(tail)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
