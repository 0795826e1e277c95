// Command prismd is the per-project code-search daemon described in
// SPEC_FULL.md: it builds and serves an in-memory, persisted index of a
// project tree over a small loopback HTTP/JSON API.
package main

func main() {
	Execute()
}
