// Package ragq answers free-text questions from passages pre-indexed in
// Valkey or Redis, running the whole query pipeline in-process.
//
//	client, _ := ragq.New(ctx,
//	    ragq.WithValkey("localhost:6379", ""),
//	    ragq.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	    ragq.WithLookupS3("eu-west-2", "rag-training-lookup", "entity-list.json"),
//	)
//	defer client.Close()
//
//	ans, err := client.Ask(ctx, "How many trophies did Arsenal win in 2023?")
//	if errors.Is(err, ragq.ErrLookupRetrieval) {
//	    // the entity list could not be fetched; no answer was produced
//	}
//	fmt.Println(ans.Text, ans.Years, ans.Clubs, ans.Entities)
package ragq
