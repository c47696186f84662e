package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/huskychat/huskychat/pkg/assembler"
	"github.com/huskychat/huskychat/pkg/cache"
	"github.com/huskychat/huskychat/pkg/chatbot"
	"github.com/huskychat/huskychat/pkg/config"
	"github.com/huskychat/huskychat/pkg/discovery"
	"github.com/huskychat/huskychat/pkg/llm"
	"github.com/huskychat/huskychat/pkg/logging"
	"github.com/huskychat/huskychat/pkg/processor"
	"github.com/huskychat/huskychat/pkg/ranker"
	"github.com/huskychat/huskychat/pkg/retriever"
	"github.com/huskychat/huskychat/pkg/scraper"
	"github.com/huskychat/huskychat/pkg/store"
	"github.com/huskychat/huskychat/server"
)

type flags struct {
	configPath string
	ingestURL  string
	question   string
	serve      bool
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.StringVar(&f.ingestURL, "ingest", "", "Crawl this URL and store the pages, then exit")
	flag.StringVar(&f.question, "question", "", "Answer a single question and exit")
	flag.BoolVar(&f.serve, "serve", false, "Run the HTTP/WebSocket server")
	flag.Parse()

	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		color.Red("config: %v", err)
		os.Exit(1)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	logger := logging.New(cfg.Server.LogLevel)

	if err := run(cfg, f, logger); err != nil {
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(cfg *config.Config, f flags, logger zerolog.Logger) error {
	ctx := context.Background()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:  cfg.LLM.EmbeddingModel,
		APIKey: cfg.LLM.APIKey,
	})
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString:    cfg.Database.URL,
		TablePrefix:   cfg.Database.TablePrefix,
		VectorDim:     cfg.Database.VectorDim,
		ShardCapacity: cfg.Database.ShardCapacity,
		Embedder:      embedder,
	})
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer vectorStore.Close()

	if f.ingestURL != "" {
		return ingest(ctx, cfg, f.ingestURL, vectorStore, logger)
	}

	bot, closeCache, err := buildChatbot(cfg, embedder, vectorStore, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	if f.serve {
		return server.New(bot, logger).ListenAndServe(":" + cfg.Server.Port)
	}
	if f.question != "" {
		answer, err := bot.Ask(ctx, f.question)
		if err != nil {
			return err
		}
		printAnswer(answer)
		return nil
	}

	return chatLoop(ctx, bot)
}

func buildChatbot(cfg *config.Config, embedder *llm.Embedder, vectorStore *store.VectorStore, logger zerolog.Logger) (*chatbot.Chatbot, func(), error) {
	generator, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLMTimeout(),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing generator: %w", err)
	}

	closeCache := func() {}
	var answerCache chatbot.AnswerCache
	if cfg.Cache.Enabled {
		c, err := cache.New(cache.Config{Addr: cfg.Cache.Addr, TTL: cfg.CacheTTL()}, logger)
		if err != nil {
			// Run without the cache rather than refuse to start.
			logger.Warn().Err(err).Msg("cache unavailable, continuing without it")
		} else {
			answerCache = c
			closeCache = func() { c.Close() }
		}
	}

	bot := chatbot.New(chatbot.Deps{
		Embedder: embedder,
		Discovery: discovery.New(vectorStore, discovery.Config{
			PageSize: cfg.Discovery.PageSize,
			TTL:      cfg.DiscoveryTTL(),
		}, logger),
		Retriever: retriever.New(vectorStore, retriever.Config{
			Workers:         cfg.Retriever.Workers,
			PerShardK:       cfg.Retriever.PerShardK,
			PerShardTimeout: cfg.PerShardTimeout(),
			ShardBudget:     cfg.Retriever.ShardBudget,
			MinHits:         cfg.Retriever.MinHits,
		}, logger),
		Ranker: ranker.New(ranker.Config{
			Weights: ranker.Weights{
				Similarity: cfg.Ranker.SimilarityWeight,
				Content:    cfg.Ranker.ContentWeight,
				Title:      cfg.Ranker.TitleWeight,
			},
			Floor: cfg.Ranker.Floor,
		}, logger),
		Assembler: assembler.New(assembler.Config{
			MaxDocuments: cfg.Assembler.MaxDocuments,
			HighBudget:   cfg.Assembler.HighBudget,
			MediumBudget: cfg.Assembler.MediumBudget,
			LowBudget:    cfg.Assembler.LowBudget,
		}),
		Generator: generator,
		Validator: llm.NewValidator(generator, llm.ValidatorConfig{}, logger),
		Cache:     answerCache,
		Logger:    logger,
	})

	return bot, closeCache, nil
}

func ingest(ctx context.Context, cfg *config.Config, startURL string, vectorStore *store.VectorStore, logger zerolog.Logger) error {
	color.Blue("\nIngesting %s\n", startURL)

	var scrapedCount int32
	s, err := scraper.New(scraper.Config{
		BaseURL:           startURL,
		MaxDepth:          cfg.Scraper.MaxDepth,
		RateLimit:         cfg.Scraper.RateLimit,
		IgnorePatterns:    cfg.Scraper.IgnorePatterns,
		AllowedExtensions: cfg.Scraper.AllowedExtensions,
		OnProgress: func(string) {
			atomic.AddInt32(&scrapedCount, 1)
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing scraper: %w", err)
	}

	scrapingBar := getProgressBar(-1, "Scraping pages...")
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				scrapingBar.Set(int(atomic.LoadInt32(&scrapedCount)))
			}
		}
	}()

	docs, err := s.Scrape(ctx, startURL)
	close(done)
	scrapingBar.Finish()
	if err != nil {
		return fmt.Errorf("scraping %s: %w", startURL, err)
	}
	color.Green("\nScraped %d pages\n", len(docs))

	proc := processor.New(processor.Config{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})
	processed, err := proc.Process(docs)
	if err != nil {
		return fmt.Errorf("processing pages: %w", err)
	}

	chunks := 0
	for _, doc := range processed {
		chunks += len(doc.Chunks)
	}
	color.Green("Processed into %d chunks\n", chunks)

	storageBar := getProgressBar(len(processed), "Storing in vector database...")
	batchSize := cfg.Database.BatchSize
	for i := 0; i < len(processed); i += batchSize {
		end := i + batchSize
		if end > len(processed) {
			end = len(processed)
		}
		if err := vectorStore.Store(ctx, processed[i:end]); err != nil {
			return fmt.Errorf("storing batch: %w", err)
		}
		storageBar.Add(end - i)
	}
	storageBar.Finish()
	color.Green("\nIngestion complete\n")
	return nil
}

func chatLoop(ctx context.Context, bot *chatbot.Chatbot) error {
	color.Cyan("\nAsk about the university (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			break
		}

		spinner := getSpinner("Searching the knowledge base...")
		answer, err := bot.Ask(ctx, question)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Sorry, I couldn't answer that: %v\n", err)
			continue
		}
		printAnswer(answer)
	}

	return scanner.Err()
}
