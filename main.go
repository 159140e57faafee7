package main

import "github.com/circa10a/push-timer/cmd"

func main() {
	cmd.Execute()
}
