package main

import "github.com/basit/rushupload-backend/cmd"

func main() {
	cmd.Execute()
}
