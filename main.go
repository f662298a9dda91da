package main

import (
	"log"

	"tickethub/cmd"

	_ "tickethub/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
