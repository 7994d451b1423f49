// memtier is the command-line entry point for the two-tier conversational
// memory pipeline: capture transcripts into the short-term buffer, promote
// buffered exchanges into the vector store, extract facts from daily logs,
// and search both tiers.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Schedulers and monitoring key off the exit code: non-zero means
		// data was not fully durably committed.
		os.Exit(1)
	}
}
