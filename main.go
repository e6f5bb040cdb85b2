package main

import (
	"log"

	"github.com/anoixa/image-predict/cmd"
	"github.com/anoixa/image-predict/config"
)

func main() {
	log.Printf("image predict %s", config.BuildString())
	cmd.Execute()
}
