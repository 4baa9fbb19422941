// Package main is the entry point for the legal RAG service.
package main

import (
	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/legal-rag/cmd/legal-rag/app"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	app.NewApp().Run()
}
