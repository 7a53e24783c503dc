// Package query interprets natural-language filter queries into
// structured attribute/operator/value predicates. It asks a hosted
// text-generation model when a token is configured and falls back to a
// deterministic keyword interpreter otherwise, so the endpoint always
// answers.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultAPIURL is the Hugging Face inference endpoint used for
// interpretation.
const DefaultAPIURL = "https://api-inference.huggingface.co/models/microsoft/DialoGPT-medium"

const feetToMeters = 0.3048

var ErrEmptyQuery = errors.New("query cannot be empty")

// Filter is one structured predicate over building attributes.
type Filter struct {
	Attribute   string `json:"attribute"`
	Operator    string `json:"operator"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// Result is an interpreted query. Method records whether the model or the
// keyword fallback produced the filter.
type Result struct {
	Query     string    `json:"query"`
	Filter    Filter    `json:"interpreted_filter"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"timestamp"`
}

// Catalog describes the attributes and operators a filter may use.
type Catalog struct {
	Attributes map[string]string `json:"available_attributes"`
	Operators  map[string]string `json:"available_operators"`
	Examples   []string          `json:"examples"`
}

var attributes = map[string]string{
	"height_m":       "Building height in meters",
	"floors":         "Number of floors",
	"building_type":  "Building classification (single_story, low_rise, mid_rise, high_rise)",
	"zoning":         "Zoning code (e.g., RC-G, C-COR)",
	"land_use":       "Land use type (residential, commercial, mixed_use)",
	"assessed_value": "Property assessed value",
}

var operators = map[string]string{
	">":        "greater than",
	"<":        "less than",
	">=":       "greater than or equal to",
	"<=":       "less than or equal to",
	"==":       "equal to",
	"!=":       "not equal to",
	"in":       "in list of values",
	"contains": "contains text",
}

type Interpreter struct {
	apiURL     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewInterpreter(token string, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		apiURL:     DefaultAPIURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "query_interpreter"),
	}
}

// Interpret converts free text into a structured filter. Model failures
// never surface to the caller; the keyword fallback always produces a
// filter.
func (i *Interpreter) Interpret(ctx context.Context, userQuery string) (Result, error) {
	userQuery = strings.TrimSpace(userQuery)
	if userQuery == "" {
		return Result{}, ErrEmptyQuery
	}

	if i.token != "" {
		if filter, ok := i.interpretWithModel(ctx, userQuery); ok {
			return Result{Query: userQuery, Filter: filter, Method: "llm", Timestamp: time.Now()}, nil
		}
	}

	return Result{
		Query:     userQuery,
		Filter:    fallbackFilter(userQuery),
		Method:    "fallback",
		Timestamp: time.Now(),
	}, nil
}

// AvailableFilters returns the filter vocabulary for clients.
func (i *Interpreter) AvailableFilters() Catalog {
	return Catalog{
		Attributes: attributes,
		Operators:  operators,
		Examples: []string{
			"show buildings over 100 feet tall",
			"highlight commercial buildings",
			"buildings with 5 or more floors",
			"low-rise residential buildings",
			"tall buildings in downtown",
		},
	}
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxLength   int     `json:"max_length"`
	Temperature float64 `json:"temperature"`
	DoSample    bool    `json:"do_sample"`
}

func (i *Interpreter) interpretWithModel(ctx context.Context, userQuery string) (Filter, bool) {
	body, err := json.Marshal(inferenceRequest{
		Inputs: buildPrompt(userQuery),
		Parameters: inferenceParameters{
			MaxLength:   200,
			Temperature: 0.1,
			DoSample:    false,
		},
	})
	if err != nil {
		return Filter{}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.apiURL, bytes.NewReader(body))
	if err != nil {
		return Filter{}, false
	}
	req.Header.Set("Authorization", "Bearer "+i.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		i.logger.Warn("inference request failed, using fallback", "error", err)
		return Filter{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		i.logger.Warn("inference request rejected, using fallback", "status", resp.StatusCode)
		return Filter{}, false
	}

	generated, ok := decodeGeneratedText(resp)
	if !ok {
		return Filter{}, false
	}
	return parseModelFilter(generated)
}

// decodeGeneratedText handles both response shapes the inference API
// serves: a list of generations or a single object.
func decodeGeneratedText(resp *http.Response) (string, bool) {
	var asList []struct {
		GeneratedText string `json:"generated_text"`
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", false
	}
	if err := json.Unmarshal(raw, &asList); err == nil && len(asList) > 0 {
		return asList[0].GeneratedText, true
	}
	var asObject struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return asObject.GeneratedText, true
	}
	return "", false
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseModelFilter extracts the first JSON object from the generated text
// and validates the required fields.
func parseModelFilter(generated string) (Filter, bool) {
	match := jsonObjectRe.FindString(generated)
	if match == "" {
		return Filter{}, false
	}
	var filter Filter
	if err := json.Unmarshal([]byte(match), &filter); err != nil {
		return Filter{}, false
	}
	if filter.Attribute == "" || filter.Operator == "" || filter.Value == nil {
		return Filter{}, false
	}
	return filter, true
}

func buildPrompt(userQuery string) string {
	attrs, _ := json.MarshalIndent(attributes, "", "  ")
	ops, _ := json.MarshalIndent(operators, "", "  ")

	return fmt.Sprintf(`You are a building data filter interpreter. Convert this natural language query into a structured JSON filter.

AVAILABLE BUILDING ATTRIBUTES:
%s

AVAILABLE OPERATORS:
%s

USER QUERY: %q

Convert this to a JSON object with these fields:
- "attribute": the building attribute to filter on
- "operator": the comparison operator to use
- "value": the value to compare against
- "description": human-readable description of what this filter does

EXAMPLES:
Query: "show buildings over 100 feet tall"
Response: {"attribute": "height_m", "operator": ">", "value": 30.48, "description": "Buildings taller than 30.48 meters (100 feet)"}

Query: "highlight commercial buildings"
Response: {"attribute": "land_use", "operator": "==", "value": "commercial", "description": "Commercial buildings only"}

Query: "buildings with 5 or more floors"
Response: {"attribute": "floors", "operator": ">=", "value": 5, "description": "Buildings with 5 or more floors"}

Now convert this query: %q

Return only the JSON, no other text:`, attrs, ops, userQuery, userQuery)
}

var (
	heightRe = regexp.MustCompile(`(\d+)\s*(?:feet?|ft)`)
	floorRe  = regexp.MustCompile(`(\d+)\s*(?:floor|story|storey)`)
)

// fallbackFilter is the deterministic keyword interpreter. It always
// returns a filter; unrecognized queries default to a modest height
// threshold.
func fallbackFilter(userQuery string) Filter {
	q := strings.ToLower(userQuery)

	switch {
	case strings.Contains(q, "height") || strings.Contains(q, "tall") || strings.Contains(q, "feet"):
		if m := heightRe.FindStringSubmatch(q); m != nil {
			feet, _ := strconv.Atoi(m[1])
			meters := float64(feet) * feetToMeters
			return Filter{
				Attribute:   "height_m",
				Operator:    ">",
				Value:       meters,
				Description: fmt.Sprintf("Buildings taller than %d feet (%.1fm)", feet, meters),
			}
		}
		return Filter{
			Attribute:   "height_m",
			Operator:    ">",
			Value:       30.0,
			Description: "Tall buildings (over 30 meters)",
		}

	case strings.Contains(q, "floor") || strings.Contains(q, "story") || strings.Contains(q, "storey"):
		if m := floorRe.FindStringSubmatch(q); m != nil {
			floors, _ := strconv.Atoi(m[1])
			return Filter{
				Attribute:   "floors",
				Operator:    ">=",
				Value:       floors,
				Description: fmt.Sprintf("Buildings with %d or more floors", floors),
			}
		}
		return Filter{
			Attribute:   "floors",
			Operator:    ">=",
			Value:       5,
			Description: "Multi-story buildings (5+ floors)",
		}

	case strings.Contains(q, "commercial") || strings.Contains(q, "business"):
		return Filter{
			Attribute:   "land_use",
			Operator:    "==",
			Value:       "commercial",
			Description: "Commercial buildings only",
		}

	case strings.Contains(q, "residential") || strings.Contains(q, "home"):
		return Filter{
			Attribute:   "land_use",
			Operator:    "==",
			Value:       "residential",
			Description: "Residential buildings only",
		}

	case strings.Contains(q, "low rise") || strings.Contains(q, "low-rise"):
		return Filter{
			Attribute:   "building_type",
			Operator:    "==",
			Value:       "low_rise",
			Description: "Low-rise buildings",
		}

	case strings.Contains(q, "high rise") || strings.Contains(q, "high-rise") || strings.Contains(q, "skyscraper"):
		return Filter{
			Attribute:   "building_type",
			Operator:    "==",
			Value:       "high_rise",
			Description: "High-rise buildings",
		}
	}

	return Filter{
		Attribute:   "height_m",
		Operator:    ">",
		Value:       10.0,
		Description: "Buildings taller than 10 meters (default interpretation)",
	}
}
