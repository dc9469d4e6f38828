package main

import "github.com/hivemindhq/hivebot/cmd"

func main() {
	cmd.Execute()
}
