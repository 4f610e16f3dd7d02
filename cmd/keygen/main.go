// Package main generates a fresh hex-encoded 256-bit encryption key for the
// engine's field cipher.
package main

import (
	"fmt"
	"os"

	"github.com/zakatwise/zakat-engine/internal/cryptobox"
)

func main() {
	key, err := cryptobox.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(key)
}
