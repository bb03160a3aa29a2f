package main

import "sermon-publisher/app"

func main() {
	app.Run(app.Options{Name: "sermon-publisher"})
}
