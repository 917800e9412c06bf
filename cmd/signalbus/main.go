package main

import "github.com/joho/godotenv"

func main() {
	// Local overrides only; a missing .env is not an error.
	_ = godotenv.Load()

	Execute()
}
