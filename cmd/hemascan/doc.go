// Command hemascan runs the anemia screening service: an HTTP API that
// accepts five clinical photographs per screening, cascades them across
// configured vision providers, and archives the results.
//
// Usage:
//
//	hemascan serve                       start the server
//	hemascan serve --config config.yaml  start with a config file
//	hemascan version                     show version information
//	hemascan health                      probe a running server
package main
