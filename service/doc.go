// Package service wires omnicm's document store from a YAML configuration: path resolver,
// backend connection pool, checkpoint manager and listing filters.
//
// This package is intended for embedding the store into other programs without shelling
// out to the CLI.
package service
