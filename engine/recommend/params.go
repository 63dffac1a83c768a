package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/llmovies/llmovies/engine/domain"
)

// Params are the search parameters extracted from a free-text request.
type Params struct {
	Topic  string
	Media  domain.MediaType
	Genres []string
}

const extractSystemPrompt = `Extract media details from my requests. ` +
	`Only call functions if my input is related to movies or tv shows. ` +
	`If the user asks you anything different than movies or TV shows, respectfully stop the conversation.`

// queryParamsFunction is the function-calling schema the model fills in.
func queryParamsFunction() gopenai.FunctionDefinition {
	return gopenai.FunctionDefinition{
		Name:        "query_params",
		Description: "Correctly extracted media information",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"semantic_search": {
					Type:        jsonschema.String,
					Description: "Topic to be used for semantic search. Must not include genre or media type.",
				},
				"media": {
					Type:        jsonschema.String,
					Enum:        []string{"TV Show", "Movie", "ALL"},
					Description: "Media type must be TV Show, Movie or ALL.",
				},
				"genres": {
					Type: jsonschema.Array,
					Items: &jsonschema.Definition{
						Type: jsonschema.String,
						Enum: append(append([]string{}, domain.Genres...), "ALL"),
					},
					Description: "Genres from the allowed list. If no genre is provided, return ALL.",
				},
			},
			Required: []string{"semantic_search", "media", "genres"},
		},
	}
}

// rawParams is the JSON shape returned by the function call.
type rawParams struct {
	SemanticSearch string   `json:"semantic_search"`
	Media          string   `json:"media"`
	Genres         []string `json:"genres"`
}

// FunctionCaller invokes a chat completion that must call a function and
// returns the raw JSON arguments.
type FunctionCaller interface {
	CallFunction(ctx context.Context, system, user string, fn gopenai.FunctionDefinition) (string, error)
}

// ExtractParams asks the model to pull topic, media type, and genres out of
// the user text. Unknown genres are dropped; a missing topic falls back to
// the full text.
func ExtractParams(ctx context.Context, caller FunctionCaller, text string) (Params, error) {
	raw, err := caller.CallFunction(ctx, extractSystemPrompt, text, queryParamsFunction())
	if err != nil {
		return Params{}, fmt.Errorf("recommend: extract params: %w", err)
	}

	var rp rawParams
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return Params{}, fmt.Errorf("recommend: parse params %q: %w", raw, err)
	}

	p := Params{Topic: strings.TrimSpace(rp.SemanticSearch)}
	if p.Topic == "" {
		p.Topic = text
	}

	switch strings.ToLower(rp.Media) {
	case "tv show", "tv":
		p.Media = domain.MediaTV
	case "movie":
		p.Media = domain.MediaMovie
	default:
		p.Media = domain.MediaAll
	}

	for _, g := range rp.Genres {
		if domain.ValidGenre(g) {
			p.Genres = append(p.Genres, g)
		}
	}
	return p, nil
}
