// NutriSnap API server.
package main

import (
	"go.uber.org/fx"

	"github.com/nutrisnap/v2/internal/infrastructure/container"
)

func main() {
	fx.New(container.Module).Run()
}
