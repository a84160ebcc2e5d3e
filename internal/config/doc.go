// Package config loads the tokenkit runtime configuration: where the chain
// definitions and contract artifact live, logging, the operation ledger and
// the event publisher.
package config
