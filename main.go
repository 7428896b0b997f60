package main

import "github.com/countryhub/country-api/cmd"

func main() {
	cmd.Execute()
}
