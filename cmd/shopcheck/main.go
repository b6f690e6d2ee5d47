// Command shopcheck runs the Swag Labs storefront and drives journeys
// against it.
//
//	shopcheck serve --addr :8080 --render-delay 300ms
//	shopcheck smoke --base-url https://www.saucedemo.com/
//	shopcheck api --pages 5
//	shopcheck soak --duration 24h --interval 10s
package main

import (
	"os"
)

// version is set via ldflags: -X main.version=v1.0.0
var version = "dev"

func main() {
	if err := execute(version, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
