package search

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeatlas-ai/codeatlas/internal/store"
)

// DefaultClassifierCacheSize bounds the LRU of classification results.
// Queries repeat heavily in assistant sessions, so the hit rate is high.
const DefaultClassifierCacheSize = 10000

// Compiled identifier-shape patterns, shared by the classifier and the
// engine's strategy selection.
var (
	camelCasePattern      = regexp.MustCompile(`^[a-z]+([A-Z][a-z0-9]*)+$`)
	pascalCasePattern     = regexp.MustCompile(`^([A-Z][a-z0-9]*){2,}$`)
	snakeCasePattern      = regexp.MustCompile(`^[a-z]+(_[a-z0-9]+)+$`)
	screamingSnakePattern = regexp.MustCompile(`^[A-Z]+(_[A-Z0-9]+)+$`)
	dottedPathPattern     = regexp.MustCompile(`^[\w\-]+(\.[\w\-]+)+$`)
	bareSymbolPattern     = regexp.MustCompile(`^[A-Za-z_]\w{2,}$`)

	// Enumeration phrasing, English and French.
	listPattern = regexp.MustCompile(`(?i)\b(list( all)?|show( all| me)?|enumerate|all (the|of)|every|liste[rz]?( tous| toutes)?|tous les|toutes les|montre(-moi)?|affiche[rz]?)\b`)
)

// domainRule maps query keywords to a structured retrieval filter.
type domainRule struct {
	domain   string
	keywords []string // lowercase, English and French
	filter   store.MetadataFilter
}

// domainRules is ordered: the first rule whose keyword matches wins.
// More specific domains come before catch-all ones.
var domainRules = []domainRule{
	{
		domain:   "routes",
		keywords: []string{"route", "endpoint", "api route", "handler", "controller", "routeur", "point de terminaison"},
		filter: store.MetadataFilter{
			PathPatterns: []string{"api/", "routes/", "handlers/", "controllers/"},
		},
	},
	{
		domain:   "components",
		keywords: []string{"component", "composant"},
		filter: store.MetadataFilter{
			PathPatterns: []string{"components/"},
			ChunkTypes:   []string{"function", "class"},
		},
	},
	{
		domain:   "hooks",
		keywords: []string{"hook", "hooks"},
		filter: store.MetadataFilter{
			PathPatterns: []string{"hooks/", "use"},
			ChunkTypes:   []string{"function"},
		},
	},
	{
		domain:   "schema",
		keywords: []string{"schema", "schéma", "model", "modèle", "prisma", "migration", "table"},
		filter: store.MetadataFilter{
			PathPatterns: []string{"schema", "prisma/", "models/", "migrations/"},
			ChunkTypes:   []string{"class", "type", "config"},
		},
	},
	{
		domain:   "tests",
		keywords: []string{"test", "tests", "spec", "specs"},
		filter: store.MetadataFilter{
			PathPatterns: []string{"test", "spec", "__tests__/"},
		},
	},
	{
		domain:   "types",
		keywords: []string{"type", "types", "interface", "interfaces", "struct", "enum"},
		filter: store.MetadataFilter{
			ChunkTypes: []string{"type", "class"},
		},
	},
	{
		domain:   "config",
		keywords: []string{"config", "configuration", "settings", "paramètres", "environment variable", "env var"},
		filter: store.MetadataFilter{
			PathPatterns: []string{"config"},
			ChunkTypes:   []string{"config"},
		},
	},
	{
		domain:   "embeddings",
		keywords: []string{"embedding", "embeddings", "vector", "vecteur"},
		filter: store.MetadataFilter{
			PathPatterns: []string{"embed"},
		},
	},
	{
		domain:   "indexing",
		keywords: []string{"indexing", "indexation", "chunking", "chunker", "indexer"},
		filter: store.MetadataFilter{
			PathPatterns: []string{"index", "chunk"},
		},
	},
}

// Classification is the classifier's verdict for one query.
type Classification struct {
	Type       QueryType
	Domain     string
	IsList     bool
	Confidence float64

	// Filter is non-nil when a domain rule matched; it drives
	// metadata-filtered retrieval for enumeration queries.
	Filter *store.MetadataFilter
}

// Classifier labels queries with a type, a domain, and an optional
// structured filter. Pure pattern matching; results are LRU-cached.
type Classifier struct {
	cache *lru.Cache[string, Classification]
}

func NewClassifier() *Classifier {
	cache, _ := lru.New[string, Classification](DefaultClassifierCacheSize)
	return &Classifier{cache: cache}
}

// Classify inspects the raw query. It never fails: unknown shapes come
// back as mixed with low confidence.
func (c *Classifier) Classify(query string) Classification {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Classification{Type: QueryTypeMixed}
	}
	key := strings.ToLower(trimmed)
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	result := classify(trimmed)
	c.cache.Add(key, result)
	return result
}

func classify(query string) Classification {
	// Case matters for identifier shapes, so test before lowercasing.
	if IsIdentifier(query) {
		return Classification{Type: QueryTypeIdentifier, Confidence: 0.9}
	}
	lower := strings.ToLower(query)

	isList := listPattern.MatchString(lower)

	for _, rule := range domainRules {
		if !matchesKeyword(lower, rule.keywords) {
			continue
		}
		result := Classification{
			Domain: rule.domain,
			IsList: isList,
			Filter: cloneFilter(rule.filter),
		}
		if isList {
			// Enumeration over a detected domain: metadata filtering
			// out-recalls a handful of similar vectors.
			result.Type = QueryTypeEnumerate
			result.Confidence = 0.8
		} else {
			result.Type = QueryTypeSemantic
			result.Confidence = 0.6
		}
		return result
	}

	if isList {
		// List phrasing without a recognizable domain: no filter to
		// apply, stay on the semantic path.
		return Classification{Type: QueryTypeSemantic, IsList: true, Confidence: 0.4}
	}

	if len(strings.Fields(lower)) >= 3 {
		return Classification{Type: QueryTypeSemantic, Confidence: 0.5}
	}
	return Classification{Type: QueryTypeMixed, Confidence: 0.3}
}

// IsIdentifier reports whether a query looks like a single code symbol:
// camelCase, PascalCase, snake_case, SCREAMING_SNAKE, a dotted path, or
// a bare word a developer would search as a function name. Multi-word
// queries are never identifiers.
func IsIdentifier(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" || strings.ContainsAny(query, " \t") {
		return false
	}
	return camelCasePattern.MatchString(query) ||
		pascalCasePattern.MatchString(query) ||
		snakeCasePattern.MatchString(query) ||
		screamingSnakePattern.MatchString(query) ||
		dottedPathPattern.MatchString(query) ||
		bareSymbolPattern.MatchString(query)
}

func matchesKeyword(query string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(query, kw) {
				return true
			}
			continue
		}
		for _, word := range strings.Fields(query) {
			w := strings.Trim(word, `"'?.,!()`)
			// Plural keyword forms count, in both languages.
			if w == kw || strings.TrimSuffix(w, "s") == kw {
				return true
			}
		}
	}
	return false
}

func cloneFilter(f store.MetadataFilter) *store.MetadataFilter {
	cp := store.MetadataFilter{
		PathPatterns: append([]string(nil), f.PathPatterns...),
		ChunkTypes:   append([]string(nil), f.ChunkTypes...),
	}
	return &cp
}
