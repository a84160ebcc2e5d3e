// Package mysql persists the operation ledger: one record per deploy or mint
// transaction submitted by tokenkit. A JSON-lines file backend serves local
// use and a MySQL backend serves shared deployments.
package mysql
