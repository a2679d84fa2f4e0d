// Package logging builds the zap.Logger every service and package in
// this module logs through.
package logging

import "go.uber.org/zap"

// New builds a production-style JSON logger when environment is
// "production", and a human-readable console logger for any other value,
// matching zap's own convention for its two canonical presets.
func New(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
