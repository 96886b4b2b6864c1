package main

import "github.com/suPer8Hu/genie-chat/cmd/genie/cmd"

func main() {
	cmd.Execute()
}
