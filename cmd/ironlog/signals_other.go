//go:build !unix

package main

import (
	"log"

	"github.com/ironlog/ironlog/internal/connectivity"
)

func watchVisibilitySignals(*connectivity.Visibility, *log.Logger) (stop func()) {
	return func() {}
}
