package main

import (
	"github.com/6000yuval/shopify-seo/cmd"
)

func main() {
	cmd.Execute()
}
