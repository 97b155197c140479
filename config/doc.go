// Package config loads jsbridge settings from JSBRIDGE_* environment
// variables.
package config
