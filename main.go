/*
Sample application that boots the engine package and draws the demo scene.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/emberengine/ember/engine"
)

func main() {
	e, err := engine.New("config.toml")
	if err != nil {
		panic(err)
	}

	if err := e.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		_ = e.Shutdown()
	}()

	if err := e.Run(); err != nil {
		panic(err)
	}
}
