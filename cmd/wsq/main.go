// Package main is the entry point for the wsq CLI.
package main

import "github.com/widgetstore/wsq/internal/cli"

func main() {
	cli.Execute()
}
