package main

import "github.com/bitrise-io/go-s3verify/cmd/s3verify/cmd"

func main() {
	cmd.Execute()
}
