package main

import (
	"log"

	"github.com/sennadevos/Chat-Application/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
