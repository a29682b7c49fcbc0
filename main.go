package main

import "github.com/privaudit/privaudit/cmd/privaudit"

func main() { privaudit.Execute() }
