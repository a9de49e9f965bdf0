package main

import "beatflow/cmd"

func main() {
	cmd.Execute()
}
