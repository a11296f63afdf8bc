package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const minimalJSON = `{
	"embedding": {"providers": [{"type": "gemini", "model": "gemini-embedding-001"}]},
	"generation": {"providers": [{"type": "openai", "model": "gpt-4o-mini"}]}
}`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalJSON), ".json")
	require.NoError(t, err)
	require.Equal(t, 250, cfg.Chunker.ChunkSize)
	require.Equal(t, 50, cfg.Chunker.Overlap)
	require.Equal(t, 10, cfg.Chunker.MinWords)
	require.Equal(t, 10, cfg.Retrieval.DefaultResults)
	require.Equal(t, 20, cfg.Retrieval.MaxResults)
	require.Equal(t, 1, cfg.Retrieval.HistoryTurns)
	require.Equal(t, 10, cfg.Context.MaxTurns)
	require.Equal(t, 1000, cfg.Context.MaxMessageChars)
	require.Equal(t, 10, cfg.Highlight.MinQuoteChars)
	require.Equal(t, 5, cfg.Highlight.MaxQuotes)
	require.InDelta(t, 0.8, cfg.Highlight.Threshold, 1e-9)
	require.Equal(t, "edit", cfg.Highlight.Matcher)
	require.Equal(t, 60, cfg.Generation.Timeout)
	require.Equal(t, 2, cfg.Generation.MaxRetries)
	require.Equal(t, 500, cfg.Generation.BackoffMs)
	require.NotNil(t, cfg.Generation.Temperature)
	require.InDelta(t, 0.2, float64(*cfg.Generation.Temperature), 1e-6)
	require.Equal(t, "openai", cfg.Generation.DefaultProvider)
	require.Equal(t, "snapshot", cfg.Index.Source)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, "memory", cfg.Conversation.Store)
	require.Equal(t, 4, cfg.Ingest.Concurrency)
}

func TestParse_YAML(t *testing.T) {
	body := `
port: 9000
chunker:
  chunk_size: 100
  overlap: 20
  min_words: 5
conversation:
  store: redis
  redis:
    addr: 127.0.0.1:6379
embedding:
  providers:
    - type: ollama
      model: nomic-embed-text
      data:
        host: http://localhost:11434
generation:
  providers:
    - name: claude
      type: claude
      model: claude-3-5-haiku-latest
  auto: [claude]
`
	cfg, err := Parse([]byte(body), ".yaml")
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, 100, cfg.Chunker.ChunkSize)
	require.Equal(t, 20, cfg.Chunker.Overlap)
	require.Equal(t, "redis", cfg.Conversation.Store)
	require.Equal(t, "groundqa:conv:", cfg.Conversation.Redis.KeyPrefix)
	require.Equal(t, "http://localhost:11434", cfg.Embedding.Providers[0].Data["host"])
	require.Equal(t, []string{"claude"}, cfg.Generation.Auto)
}

func TestParse_APIKeyEnv(t *testing.T) {
	t.Setenv("GROUNDQA_TEST_KEY", "secret")
	body := `{
		"embedding": {"providers": [{"type": "gemini", "api_key_env": "GROUNDQA_TEST_KEY"}]},
		"generation": {"providers": [{"type": "openai", "api_key_env": "GROUNDQA_TEST_KEY", "data": {"api_key": "inline"}}]}
	}`
	cfg, err := Parse([]byte(body), ".json")
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.Embedding.Providers[0].Data["api_key"])
	require.Equal(t, "inline", cfg.Generation.Providers[0].Data["api_key"])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no embedding",
			body: `{"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "overlap too large",
			body: `{"chunker": {"chunk_size": 10, "overlap": 10},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "pgvector without postgres",
			body: `{"index": {"source": "pgvector"},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "duplicate provider",
			body: `{"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}, {"type": "openai"}]}}`,
		},
		{
			name: "bad matcher",
			body: `{"highlight": {"matcher": "regex"},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "negative context turns",
			body: `{"context": {"max_turns": -1},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "negative message chars",
			body: `{"context": {"max_message_chars": -5},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "max results above 20",
			body: `{"retrieval": {"max_results": 50},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "negative default results",
			body: `{"retrieval": {"default_results": -1},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "negative history turns",
			body: `{"retrieval": {"history_turns": -2},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "negative max quotes",
			body: `{"highlight": {"max_quotes": -1},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "negative min quote chars",
			body: `{"highlight": {"min_quote_chars": -1},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
		{
			name: "negative ingest concurrency",
			body: `{"ingest": {"concurrency": -3},
				"embedding": {"providers": [{"type": "gemini"}]},
				"generation": {"providers": [{"type": "openai"}]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body), ".json")
			require.Error(t, err)
		})
	}
}

func TestParse_MaxResultsAtLimit(t *testing.T) {
	body := `{"retrieval": {"default_results": 20, "max_results": 20},
		"embedding": {"providers": [{"type": "gemini"}]},
		"generation": {"providers": [{"type": "openai"}]}}`
	cfg, err := Parse([]byte(body), ".json")
	require.NoError(t, err)
	require.Equal(t, MaxRetrievalResults, cfg.Retrieval.MaxResults)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(minimalJSON), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
