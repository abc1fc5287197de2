package endpoint

import "os"

// Stdio wires the byte endpoint to the process's standard streams. Read
// and Write are independent descriptors (fd 0 and fd 1), never assumed
// to be the same, per spec.md §9.
func Stdio() Pair {
	return Pair{Read: os.Stdin, Write: os.Stdout}
}
