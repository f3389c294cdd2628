// Command keygen prints a fresh master key for sealing custodial private
// keys. Store it as MASTER_KEY; keys sealed with it cannot be recovered
// without it.
package main

import (
	"fmt"

	"github.com/dmitrijs2005/walletkeeper/internal/cryptox"
)

func main() {
	fmt.Println(cryptox.GenerateMasterKey())
}
