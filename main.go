package main

import "github.com/lakeprobe/lakeprobe/cmd/lakeprobe"

func main() {
	lakeprobe.Main()
}
