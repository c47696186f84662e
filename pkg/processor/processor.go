package processor

import (
	"strings"

	"github.com/huskychat/huskychat/internal/models"
)

type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

// Processor splits scraped pages into overlapping sentence-aligned chunks
// sized for embedding. Cleanup normalizes whitespace only; casing is kept
// because proper nouns and acronyms carry signal for both the embedding
// and the keyword-overlap ranking.
type Processor struct {
	config Config
}

func New(config Config) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}

	return Processor{config: config}
}

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	var processed []models.ProcessedDocument

	for _, doc := range docs {
		chunks := p.splitIntoChunks(cleanText(doc.Content))
		if len(chunks) == 0 {
			continue
		}
		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}

	return processed, nil
}

func cleanText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string

	sentences := splitIntoSentences(text)
	current := strings.Builder{}

	for _, sentence := range sentences {
		if current.Len()+len(sentence) > p.config.ChunkSize {
			if current.Len() >= p.config.MinChunkLength {
				chunks = append(chunks, strings.TrimSpace(current.String()))
			}

			// Seed the next chunk with the tail of this one so facts that
			// straddle a boundary stay queryable.
			if p.config.ChunkOverlap > 0 && current.Len() > p.config.ChunkOverlap {
				tail := current.String()
				tail = tail[len(tail)-p.config.ChunkOverlap:]
				current.Reset()
				current.WriteString(tail)
			} else {
				current.Reset()
			}
		}

		current.WriteString(sentence)
		current.WriteString(" ")
	}

	if current.Len() >= p.config.MinChunkLength {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

func splitIntoSentences(text string) []string {
	var sentences []string
	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])
		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}
