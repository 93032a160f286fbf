// Package indexer embeds deduplicated chunks and writes them to the vector
// store.
//
// Every run rebuilds the collection from scratch:
//
//	idx := indexer.New(store, embedder, indexer.WithBatchSize(1000))
//	stats, err := idx.Run(ctx, chunks)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Chunks: %d\n", stats.Chunks)
//
// Batches are processed sequentially. A failing batch aborts the run and
// leaves the batches before it in the store; rerunning starts over.
package indexer
