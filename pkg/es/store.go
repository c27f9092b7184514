package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/pkg/embedding"
	"rag-chatbot-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// StorageError 表示向量存储层的连接或写入失败，
// 摄取管道不会吞掉它，而是让任务失败并记录原因。
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("vector storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Record 是一条待写入集合的问答记录。
type Record struct {
	ID       string
	VendorID string
	UploadID uint
	RowIndex int
	Question string
	Answer   string
}

// Store 封装了 Elasticsearch 客户端与钉死的 embedding 函数，
// 对外提供幂等建集合、按 ID 批量写入和最近邻检索。
type Store struct {
	client   *elasticsearch.Client
	embedder embedding.Client
	dims     int
}

// NewStore 初始化 Elasticsearch 客户端并构建 Store。
func NewStore(cfg config.ElasticsearchConfig, embCfg config.EmbeddingConfig, embedder embedding.Client) (*Store, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, &StorageError{Op: "connect", Err: err}
	}
	return &Store{client: client, embedder: embedder, dims: embCfg.Dimensions}, nil
}

// EnsureCollection 确保租户集合存在并返回其名称。
// 创建是幂等的：集合已存在时直接返回既有名称，同一租户绝不会产生两个集合。
func (s *Store) EnsureCollection(ctx context.Context, vendorID string) (string, error) {
	name := CollectionName(vendorID)

	res, err := s.client.Indices.Exists([]string{name}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return "", &StorageError{Op: "exists-check", Err: err}
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return name, nil
	}
	if res.StatusCode != http.StatusNotFound {
		return "", &StorageError{Op: "exists-check", Err: fmt.Errorf("unexpected status code: %d", res.StatusCode)}
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"record_id": { "type": "keyword" },
				"vendor_id": { "type": "keyword" },
				"upload_id": { "type": "long" },
				"row_index": { "type": "integer" },
				"question": { "type": "text" },
				"answer": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, s.dims)

	createRes, err := s.client.Indices.Create(
		name,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return "", &StorageError{Op: "create-collection", Err: err}
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		// 并发创建时另一方可能已经建好，视同存在
		if strings.Contains(createRes.String(), "resource_already_exists_exception") {
			return name, nil
		}
		return "", &StorageError{Op: "create-collection", Err: fmt.Errorf("elasticsearch returned an error: %s", createRes.String())}
	}

	log.Infof("[VectorStore] 集合 '%s' 创建成功", name)
	return name, nil
}

// Exists 报告指定记录 ID 是否已存在于集合中。
func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	res, err := s.client.Exists(collection, id, s.client.Exists.WithContext(ctx))
	if err != nil {
		return false, &StorageError{Op: "exists", Err: err}
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &StorageError{Op: "exists", Err: fmt.Errorf("unexpected status code: %d", res.StatusCode)}
	}
}

// Upsert 将记录逐条向量化后按 ID 写入集合。
// 同一 ID 再次写入即原位覆盖，这是 overwrite 冲突策略的落点。
func (s *Store) Upsert(ctx context.Context, collection string, records []Record) error {
	for i, rec := range records {
		vector, err := s.embedder.CreateEmbedding(ctx, rec.Question)
		if err != nil {
			return fmt.Errorf("记录 %s 向量化失败: %w", rec.ID, err)
		}

		doc := model.FaqRecord{
			RecordID:     rec.ID,
			VendorID:     rec.VendorID,
			UploadID:     rec.UploadID,
			RowIndex:     rec.RowIndex,
			Question:     rec.Question,
			Answer:       rec.Answer,
			Vector:       vector,
			ModelVersion: s.embedder.Model(),
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("序列化记录 %s 失败: %w", rec.ID, err)
		}

		req := esapi.IndexRequest{
			Index:      collection,
			DocumentID: rec.ID,
			Body:       bytes.NewReader(docBytes),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return &StorageError{Op: "upsert", Err: err}
		}
		isErr := res.IsError()
		detail := ""
		if isErr {
			detail = res.String()
		}
		res.Body.Close()
		if isErr {
			return &StorageError{Op: "upsert", Err: fmt.Errorf("index record %s: %s", rec.ID, detail)}
		}
		log.Debugf("[VectorStore] 记录 %d/%d 写入成功, id=%s", i+1, len(records), rec.ID)
	}
	return nil
}

// Query 返回与查询文本最相近的 topK 条记录。
// 空集合（或集合尚未创建）返回空结果而非错误。
func (s *Store) Query(ctx context.Context, collection, text string, topK int) ([]model.FaqHit, error) {
	queryVector, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	numCandidates := topK * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              topK,
			"num_candidates": numCandidates,
		},
		"size": topK,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(collection),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		// 集合尚未创建等同于空集合
		if res.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, &StorageError{Op: "query", Err: fmt.Errorf("elasticsearch returned an error: %s", res.String())}
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.FaqRecord `json:"_source"`
				Score  float64         `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]model.FaqHit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, model.FaqHit{
			RecordID: h.Source.RecordID,
			Question: h.Source.Question,
			Answer:   h.Source.Answer,
			Score:    h.Score,
		})
	}
	return hits, nil
}
