// Package memory defines the capability surface of the memory service and
// provides a local composite implementation of it.
//
// The agent core talks only to the Service interface: per-user keyed
// storage (traces, penalties, feedback records), episodic interaction
// logging and recall, and semantic knowledge storage and search. All
// records are namespaced by user for tenant isolation.
//
// Architecture:
//   - Service: the narrow contract the agent core consumes
//   - VectorStore: similarity-search backend (chromem-go locally,
//     pgvector for production)
//   - KeyValue: durable per-scope keyed storage (sqlite locally),
//     optionally fronted by a ristretto read cache
//   - Embedder: text-to-vector conversion (mock for tests, OpenAI API,
//     or a local ONNX model behind the onnx build tag)
//
// Local composes a VectorStore, a KeyValue, and an Embedder into a full
// Service. Deployments against a remote memory service substitute a
// client implementing the same interface.
package memory
