// Package web3 houses blockchain connectivity utilities for tokenkit: chain
// definitions, the backend abstraction shared by the registry and the token
// bindings, and the result types returned by contract deployments.
package web3
