package main

import "github.com/Norgate-AV/decompcache/cmd"

func main() {
	cmd.Execute()
}
