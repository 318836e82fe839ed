package main

import "portalguard/cmd/portalctl/cmd"

func main() {
	cmd.Execute()
}
