//go:build tools
// +build tools

// Package tools pins the code generators invoked through go generate so
// they are tracked in go.mod.
package roomchat

import (
	_ "go.uber.org/mock/mockgen"
)
