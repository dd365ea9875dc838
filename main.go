package main

import "github.com/frahmantamala/courier-fulfillment/cmd"

func main() {
	cmd.Execute()
}
