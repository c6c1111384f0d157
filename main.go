package main

import "cybooks/internal/app"

func main() {
	app.Execute()
}
