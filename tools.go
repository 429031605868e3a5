//go:build tools
// +build tools

// Package tools pins the code generators run by go generate (mockgen).
package bot_bridge

import (
	_ "go.uber.org/mock/mockgen"
)
