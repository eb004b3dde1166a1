package main

import "github.com/frahmantamala/hyperswitch-gateway/cmd"

func main() {
	cmd.Execute()
}
