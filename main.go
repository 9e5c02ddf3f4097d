package main

import "github.com/lepinkainen/bookseed/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
