package feed

import (
	"math"
	"strings"
	"unicode"
)

const rootPath = "(root)"

type Normalizer struct {
	schema            *schemaValidator
	enclosureFallback bool
}

type NormalizerOption func(*Normalizer)

// WithEnclosureThumbnails uses enclosure.link when an item has no thumbnail,
// as the browser client does.
func WithEnclosureThumbnails() NormalizerOption {
	return func(n *Normalizer) {
		n.enclosureFallback = true
	}
}

func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		schema: newSchemaValidator(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Variant names the pipeline flavour for logs and metrics.
func (n *Normalizer) Variant() string {
	if n.enclosureFallback {
		return "client"
	}
	return "server"
}

// Normalize turns decoded aggregator JSON into a validated FeedResult. The
// input is not modified.
func (n *Normalizer) Normalize(raw any) (*FeedResult, error) {
	envelope, ok := raw.(map[string]any)
	if !ok {
		return nil, &SchemaValidationError{Violations: []Violation{
			{Path: rootPath, Reason: "Expected object, received " + jsonType(raw)},
		}}
	}

	cleaned := make(map[string]any, len(envelope))
	for k, v := range envelope {
		cleaned[k] = v
	}

	if items, ok := envelope["items"].([]any); ok {
		cleanedItems := make([]any, 0, len(items))
		for _, item := range items {
			cleanedItems = append(cleanedItems, n.cleanItem(item))
		}
		cleaned["items"] = cleanedItems
	}

	if violations := n.schema.Validate(cleaned); len(violations) > 0 {
		return nil, &SchemaValidationError{Violations: violations}
	}

	result := buildResult(cleaned)
	if result.Status != StatusOK {
		return nil, &UpstreamReportedFailureError{Status: result.Status}
	}

	return result, nil
}

func (n *Normalizer) cleanItem(item any) map[string]any {
	// Non-object items read as empty objects.
	src, _ := item.(map[string]any)

	cleaned := map[string]any{
		"title":       orEmpty(src["title"]),
		"link":        orEmpty(src["link"]),
		"pubDate":     orEmpty(src["pubDate"]),
		"description": orEmpty(src["description"]),
		"content":     orEmpty(src["content"]),
		"guid":        orEmpty(src["guid"], src["link"]),
	}

	candidate := src["thumbnail"]
	if n.enclosureFallback && !truthy(candidate) {
		if enclosure, ok := src["enclosure"].(map[string]any); ok {
			candidate = enclosure["link"]
		}
	}

	if thumbnail, ok := cleanThumbnail(candidate); ok {
		cleaned["thumbnail"] = thumbnail
	}

	return cleaned
}

// cleanThumbnail accepts only non-blank strings starting with "http".
func cleanThumbnail(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimFunc(s, isTrimmable)
	if trimmed == "" || !strings.HasPrefix(s, "http") {
		return "", false
	}
	return trimmed, true
}

// isTrimmable matches whitespace plus the byte order mark, which
// strings.TrimSpace keeps.
func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// orEmpty returns the first truthy value, or "".
func orEmpty(values ...any) any {
	for _, v := range values {
		if truthy(v) {
			return v
		}
	}
	return ""
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return true
	}
}

// buildResult assumes envelope already passed schema validation.
func buildResult(envelope map[string]any) *FeedResult {
	meta, _ := envelope["feed"].(map[string]any)
	items, _ := envelope["items"].([]any)

	result := &FeedResult{
		Status: asString(envelope["status"]),
		Feed: Meta{
			Title:       asString(meta["title"]),
			Description: asString(meta["description"]),
			Link:        asString(meta["link"]),
		},
		Items: make([]Post, 0, len(items)),
	}

	for _, item := range items {
		m, _ := item.(map[string]any)
		result.Items = append(result.Items, Post{
			Title:       asString(m["title"]),
			Link:        asString(m["link"]),
			PublishedAt: asString(m["pubDate"]),
			Description: asString(m["description"]),
			Content:     asString(m["content"]),
			Thumbnail:   asString(m["thumbnail"]),
			GUID:        asString(m["guid"]),
		})
	}

	return result
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}
