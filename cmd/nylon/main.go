// Nylon is a programmable application gateway: routing, middleware
// pipelines, and load balancing driven entirely by a declarative
// configuration tree, with request-lifecycle hooks dispatched to plugins
// over a local-FFI or messaging transport.
package main

func main() {
	Execute()
}
