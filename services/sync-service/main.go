package main

import "github.com/nordiq/mailroom/services/sync-service/internal/app"

func main() {
	app.Execute()
}
