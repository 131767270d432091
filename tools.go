//go:build tools
// +build tools

// Package tools pins the code generators run through go generate.
package collab_live

import (
	_ "go.uber.org/mock/mockgen"
)
