package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zapdesk/gateway-sync/internal/util"
)

// Usage:
//
//	go run scripts/hash-password.go <admin-api-key>
//	ENCRYPTION_KEY=<hex> go run scripts/hash-password.go -encrypt <gateway-api-key>
func main() {
	encrypt := flag.Bool("encrypt", false, "encrypt a gateway API key with ENCRYPTION_KEY instead of hashing")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-password.go [-encrypt] <value>\n")
		os.Exit(1)
	}
	value := flag.Arg(0)

	if *encrypt {
		out, err := util.EncryptSecret(os.Getenv("ENCRYPTION_KEY"), value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out)
		return
	}

	hash, err := util.HashPassword(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
