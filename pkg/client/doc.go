// Package client implements the two HTTP clients spec.md §6 describes:
// NodeClient talks to the agent running next to a datastore node
// (info/shards/actions), PlatformClient talks to a discovery/
// provisioning platform. The wire protocol is explicitly out of scope
// per spec.md §1, so both are plain net/http wrappers with no framework
// dependency, grounded on the baseURL+http.Client client shape used
// across the example pack (e.g. ollama-distributed's integration
// client stubs).
package client
