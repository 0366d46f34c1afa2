// cmd/launchguard/main.go
package main

import "github.com/rovshanmuradov/launchguard/internal/cli"

func main() {
	cli.Execute()
}
