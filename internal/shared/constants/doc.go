// Package constants centralizes defaults shared across the CLI, the gateway and
// the tool services: file permissions, the suite endpoint, request timeouts and
// the diagram canvas size.
package constants
