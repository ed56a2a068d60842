package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"safeon/internal/chunker"
	"safeon/internal/embedder"
	"safeon/internal/jsonl"
	"safeon/internal/precedent"
	"safeon/internal/store"
	"safeon/internal/walker"
)

// Stats reports indexing results.
type Stats struct {
	Files       int
	DocsTotal   int
	DocsIndexed int
	DocsSkipped int
	ChunksTotal int
}

// docWork is a precedent that needs to be (re-)indexed.
type docWork struct {
	doc  precedent.Precedent
	hash string
}

// chunkBatch is the chunks cut from a single precedent.
type chunkBatch struct {
	work   docWork
	chunks []chunker.Chunk
}

// embeddedBatch has chunks with their embeddings ready to store.
type embeddedBatch struct {
	work       docWork
	chunks     []chunker.Chunk
	embeddings [][]float32
}

// docHash covers the record and the chunking parameters, so either change
// triggers a re-index.
func docHash(p precedent.Precedent, opts chunker.Options) string {
	b, _ := json.Marshal(p)
	h := sha256.New()
	h.Write(b)
	fmt.Fprintf(h, "|%d/%d", opts.Size, opts.Overlap)
	return hex.EncodeToString(h.Sum(nil))
}

func runPipeline(
	ctx context.Context,
	root string,
	s store.Store,
	emb Embedder,
	cfg Config,
	warn func(error),
) (*Stats, error) {
	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	onProgress := cfg.OnProgress

	var stats Stats
	var files, docsTotal atomic.Int64

	// Stage 1: Walk
	fileCh, walkErrCh := walker.Walk(ctx, root, walker.Options{Exts: map[string]bool{"jsonl": true}})

	// Stage 2: Read + hash check (N workers, one file each)
	workCh := make(chan docWork, numWorkers)
	var readWg sync.WaitGroup
	for range numWorkers {
		readWg.Add(1)
		go func() {
			defer readWg.Done()
			for fi := range fileCh {
				files.Add(1)
				err := jsonl.ReadFile(fi.Path, func(p precedent.Precedent) error {
					// Chunk files share the id/text keys; only corpus records carry prec_id.
					if p.PrecID == "" || strings.TrimSpace(p.Text) == "" {
						return nil
					}
					if p.ID == "" {
						p.ID = precedent.RecordID(p.PrecID)
					}
					docsTotal.Add(1)
					hash := docHash(p, cfg.Chunk)
					existing, err := s.GetPrecedentHash(p.ID)
					if err == nil && existing == hash {
						return nil // unchanged
					}
					workCh <- docWork{doc: p, hash: hash}
					return nil
				})
				if err != nil {
					warn(fmt.Errorf("read %s: %w", fi.RelPath, err))
				}
			}
		}()
	}
	go func() {
		readWg.Wait()
		close(workCh)
	}()

	// Stage 3: Chunk (N workers)
	chunkCh := make(chan chunkBatch, numWorkers)
	var chunkWg sync.WaitGroup
	for range numWorkers {
		chunkWg.Add(1)
		go func() {
			defer chunkWg.Done()
			for w := range workCh {
				chunks, err := chunker.ChunkPrecedent(w.doc, cfg.Chunk)
				if err != nil {
					warn(fmt.Errorf("chunk %s: %w", w.doc.ID, err))
					continue
				}
				if len(chunks) > 0 {
					chunkCh <- chunkBatch{work: w, chunks: chunks}
				}
			}
		}()
	}
	go func() {
		chunkWg.Wait()
		close(chunkCh)
	}()

	// Stage 4: Embed (1 worker, batches of embedder.DefaultBatchSize).
	// After a failure the stage keeps draining so upstream workers finish.
	embeddedCh := make(chan embeddedBatch, 4)
	var embedErr error
	var embedWg sync.WaitGroup
	embedWg.Add(1)
	go func() {
		defer embedWg.Done()
		defer close(embeddedCh)

		for batch := range chunkCh {
			if embedErr != nil {
				continue
			}
			texts := make([]string, len(batch.chunks))
			for i, c := range batch.chunks {
				texts[i] = chunker.EmbedText(c)
			}

			all := make([][]float32, 0, len(texts))
			for i := 0; i < len(texts); i += embedder.DefaultBatchSize {
				end := min(i+embedder.DefaultBatchSize, len(texts))
				embs, err := emb.Embed(ctx, texts[i:end])
				if err != nil {
					embedErr = fmt.Errorf("%s: %w", batch.work.doc.ID, err)
					break
				}
				all = append(all, embs...)
			}
			if embedErr != nil {
				continue
			}

			embeddedCh <- embeddedBatch{
				work:       batch.work,
				chunks:     batch.chunks,
				embeddings: all,
			}
		}
	}()

	// Stage 5: Store (1 worker)
	var storeErr error
	var storeWg sync.WaitGroup
	storeWg.Add(1)
	go func() {
		defer storeWg.Done()

		for eb := range embeddedCh {
			p := eb.work.doc
			precID, err := s.UpsertPrecedent(store.PrecedentRecord{
				DocID:           p.ID,
				PrecID:          p.PrecID,
				CaseNo:          p.CaseNo,
				CaseName:        p.CaseName,
				Court:           p.Court,
				DecisionDate:    p.DecisionDate,
				DecisionDateISO: p.DecisionDateISO,
				Source:          p.Source,
				Body:            p.Text,
				Hash:            eb.work.hash,
			})
			if err != nil {
				warn(fmt.Errorf("store upsert %s: %w", p.ID, err))
				storeErr = err
				continue
			}

			storeChunks := make([]store.Chunk, len(eb.chunks))
			for i, c := range eb.chunks {
				meta, _ := json.Marshal(c.Metadata)
				storeChunks[i] = store.Chunk{
					UUID:     c.ID,
					Index:    c.Index,
					Content:  c.Text,
					Metadata: string(meta),
				}
			}

			chunkIDs, err := s.InsertChunks(precID, storeChunks)
			if err != nil {
				warn(fmt.Errorf("store chunks %s: %w", p.ID, err))
				storeErr = err
				continue
			}

			if err := s.InsertEmbeddings(chunkIDs, eb.embeddings); err != nil {
				warn(fmt.Errorf("store embeddings %s: %w", p.ID, err))
				storeErr = err
				continue
			}

			stats.DocsIndexed++
			stats.ChunksTotal += len(eb.chunks)
			if onProgress != nil {
				onProgress("Indexing precedents...", stats.DocsIndexed, int(docsTotal.Load()))
			}
		}
	}()

	storeWg.Wait()
	embedWg.Wait()

	if err := <-walkErrCh; err != nil {
		return nil, fmt.Errorf("walk error: %w", err)
	}

	stats.Files = int(files.Load())
	stats.DocsTotal = int(docsTotal.Load())
	stats.DocsSkipped = stats.DocsTotal - stats.DocsIndexed

	if embedErr != nil {
		return &stats, fmt.Errorf("embedding failed: %w", embedErr)
	}
	if storeErr != nil {
		return &stats, fmt.Errorf("storage failed: %w", storeErr)
	}

	return &stats, nil
}
