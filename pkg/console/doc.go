// Package console implements the coordinator's optional interactive
// operator shell (-interactive), built on github.com/chzyer/readline
// for line editing and history instead of a bare bufio.Reader.
package console
