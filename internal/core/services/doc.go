// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The managers (credentials, connectors, pairs, attempts, attribution,
// chunks) are thin rule layers over the stores. The runners (indexing,
// deletion, scheduler) drive whole attempts end to end.
package services
