package main

import "github.com/railwayapp/yardmaster/cmd/yardmaster"

func main() {
	yardmaster.Execute()
}
