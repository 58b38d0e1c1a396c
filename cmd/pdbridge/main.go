// Command pdbridge runs a user script as a message handler for a host
// patching environment, speaking the bridge protocol on stdin and stdout.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
