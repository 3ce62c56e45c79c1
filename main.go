/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/clmops/approval-engine/cmd"

func main() {
	cmd.Execute()
}
