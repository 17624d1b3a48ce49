package main

import "github.com/nextlevelbuilder/codexpanel/cmd"

func main() {
	cmd.Execute()
}
