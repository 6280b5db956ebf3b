//go:build ignore

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aaaalabs/kinn-radar/internal/auth"
)

// Prints a bcrypt hash suitable for the ADMIN_PASSWORD_HASH env var.
//
// Usage: go run scripts/utilities/hash_password.go <password>
func main() {
	if len(os.Args) != 2 {
		log.Fatal("usage: hash_password <password>")
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	fmt.Println(hash)
}
