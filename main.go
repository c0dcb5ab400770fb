package main

import (
	"webchat-bridge/internal/bootstrap"
)

func main() {
	bootstrap.NewApp().Run()
}
