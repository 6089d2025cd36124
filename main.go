package main

import "github.com/lunabot-ai/lunabot/cmd"

func main() {
	cmd.Execute()
}
