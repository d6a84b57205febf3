package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/fluxa/internal/domain/entity"
)

const identityMapping = `{
  "mappings": {
    "properties": {
      "id":                {"type": "long"},
      "email":             {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "display_name":      {"type": "text"},
      "avatar_url":        {"type": "keyword", "index": false},
      "oauth_provider":    {"type": "keyword"},
      "is_active":         {"type": "boolean"},
      "is_superuser":      {"type": "boolean"},
      "subscription_tier": {"type": "keyword"},
      "created_at":        {"type": "date"},
      "updated_at":        {"type": "date"}
    }
  }
}`

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source entity.IdentityDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// IdentityIndex keeps a searchable copy of identities, keyed by identity id.
type IdentityIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewIdentityIndex(es *elasticsearch.Client, index string) *IdentityIndex {
	return &IdentityIndex{es: es, index: index}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (x *IdentityIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.es.Indices.Exists([]string{x.index}, x.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search: check index: %w", err)
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = x.es.Indices.Create(x.index,
		x.es.Indices.Create.WithBody(strings.NewReader(identityMapping)),
		x.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("search: create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	return responseErr("create index", res)
}

// Index upserts doc; re-indexing the same identity replaces the document.
func (x *IdentityIndex) Index(ctx context.Context, doc entity.IdentityDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("search: marshal document: %w", err)
	}
	res, err := x.es.Index(x.index, bytes.NewReader(body),
		x.es.Index.WithDocumentID(strconv.FormatInt(doc.ID, 10)),
		x.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("search: index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	return responseErr("index", res)
}

// Search matches q against email (boosted) and display name.
func (x *IdentityIndex) Search(ctx context.Context, q string, size int) ([]entity.IdentityDocument, error) {
	query := map[string]any{
		"size": size,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "display_name"},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("search: marshal query: %w", err)
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if err := responseErr("query", res); err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}
	out := make([]entity.IdentityDocument, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func responseErr(op string, res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	var e errorResponse
	if err := json.NewDecoder(res.Body).Decode(&e); err == nil && e.Error.Type != "" {
		return fmt.Errorf("search: %s: %s: %s", op, e.Error.Type, e.Error.Reason)
	}
	return fmt.Errorf("search: %s: unexpected status %s", op, res.Status())
}
