package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "postcode-workers/internal/common/errors"
	"postcode-workers/internal/lookup"
)

const addressIndexMapping = `{
  "mappings": {
    "properties": {
      "postcode": {"type": "keyword"},
      "content":  {"type": "text", "index": false},
      "created":  {"type": "date"}
    }
  }
}`

type addressDocument struct {
	Postcode string    `json:"postcode"`
	Content  string    `json:"content"`
	Created  time.Time `json:"created"`
}

// ElasticsearchCache stores one document per postcode, keyed by postcode.
type ElasticsearchCache struct {
	client *elasticsearch.Client
	index  string
	now    func() time.Time
}

func NewElasticsearchCache(client *elasticsearch.Client, index string) *ElasticsearchCache {
	return &ElasticsearchCache{
		client: client,
		index:  index,
		now:    time.Now,
	}
}

func (c *ElasticsearchCache) Name() string { return "elasticsearch" }

// EnsureSchema creates the index with its mapping when it is missing.
func (c *ElasticsearchCache) EnsureSchema(ctx context.Context) error {
	res, err := c.client.Indices.Exists(
		[]string{c.index},
		c.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("check address index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = c.client.Indices.Create(
		c.index,
		c.client.Indices.Create.WithBody(bytes.NewReader([]byte(addressIndexMapping))),
		c.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create address index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create address index: %s", res.Status())
	}
	return nil
}

func (c *ElasticsearchCache) Find(ctx context.Context, postcode string) (*lookup.CacheEntry, error) {
	res, err := c.client.Get(
		c.index,
		postcode,
		c.client.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, apperrors.NewCacheReadFailedError(postcode, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, lookup.ErrCacheMiss
	}
	if res.IsError() {
		return nil, apperrors.NewCacheReadFailedError(postcode, fmt.Errorf("get document: %s", res.Status()))
	}

	var body struct {
		Found  bool            `json:"found"`
		Source addressDocument `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, apperrors.NewCacheReadFailedError(postcode, err)
	}
	if !body.Found {
		return nil, lookup.ErrCacheMiss
	}

	return &lookup.CacheEntry{
		Postcode:  postcode,
		Content:   body.Source.Content,
		CreatedAt: body.Source.Created,
	}, nil
}

// Upsert indexes the document under the postcode id, replacing any previous version.
func (c *ElasticsearchCache) Upsert(ctx context.Context, postcode, content string) error {
	payload, err := json.Marshal(addressDocument{
		Postcode: postcode,
		Content:  content,
		Created:  c.now().UTC(),
	})
	if err != nil {
		return apperrors.NewCacheWriteFailedError(postcode, err)
	}

	res, err := c.client.Index(
		c.index,
		bytes.NewReader(payload),
		c.client.Index.WithDocumentID(postcode),
		c.client.Index.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewCacheWriteFailedError(postcode, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewCacheWriteFailedError(postcode, fmt.Errorf("index document: %s", res.Status()))
	}
	return nil
}
