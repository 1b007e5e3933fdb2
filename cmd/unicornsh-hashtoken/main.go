/*
Unicornsh-hashtoken bcrypt-hashes an operator-chosen introspection bearer
token, for use with "unicornsh --introspect-token-hash".

Usage:

	unicornsh-hashtoken <token>
*/
package main

import (
	"fmt"
	"os"

	"github.com/mistwave/unicornsh/internal/introspect"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: unicornsh-hashtoken <token>")
		os.Exit(1)
	}

	hash, err := introspect.HashToken(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		os.Exit(1)
	}
	fmt.Println(hash)
}
