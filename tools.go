//go:build tools

package tools

import (
	_ "github.com/maxbrunsfeld/counterfeiter/v6"
	_ "github.com/veedubyou/direnv-to-dotenv"
	_ "golang.org/x/tools/cmd/goimports"
)
