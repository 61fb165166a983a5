// SPDX-License-Identifier: MPL-2.0

// Package config loads the launcher configuration: a CUE file validated
// against an embedded schema and merged over defaults through Viper.
package config
