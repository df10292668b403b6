// Package conceptgraph turns uploaded documents into a per-user concept graph.
//
// Each document is processed as one batch: the text is extracted, a language
// model proposes candidate concepts and relations, and the merge engine maps
// those candidates onto the user's existing graph. Concepts whose names are
// close to an existing node are resolved to it instead of being duplicated,
// and directed relations are written at most once per (source, target) pair.
//
// # Basic Usage
//
//	drv, err := driver.NewBadgerDriver("./data/graph")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	llm, err := nlp.New(ctx, cfg.NLP, nlp.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := conceptgraph.NewClient(
//		drv,
//		extractor.NewFileTextExtractor(0),
//		extractor.NewLLMConceptExtractor(llm),
//		&conceptgraph.Config{UploadDir: "./uploads"},
//		slog.Default(),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// # Processing Documents
//
// ProcessDocument schedules a batch and returns immediately. Batches for the
// same user run one at a time in submission order:
//
//	client.ProcessDocument("/tmp/notes.pdf", "user-1", "doc-1")
//
// Ingest runs the same pipeline synchronously and reports what changed:
//
//	res, err := client.Ingest(ctx, "/tmp/notes.pdf", "user-1", "doc-1")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("created %d nodes, %d edges\n", len(res.CreatedNodes), len(res.CreatedEdges))
//
// # Reading the Graph
//
//	g, err := client.GetMap(ctx, "user-1")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, n := range g.Nodes {
//		fmt.Println(n.Name)
//	}
package conceptgraph
