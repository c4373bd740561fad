// tokenhash генерирует bcrypt-хеш API-токена для API_TOKEN_HASH.
//
// Использование:
//
//	tokenhash <token>
//	export API_TOKEN_HASH='<вывод>'
package main

import (
	"fmt"
	"os"

	"tradebot/pkg/crypto"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: tokenhash <token>")
		os.Exit(2)
	}

	hash, err := crypto.HashToken(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenhash: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
