package storage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"
)

// newQdrantTestServer 模拟Qdrant REST接口，集合已存在且维度为4
func newQdrantTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request) bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/test_collection" && r.Method == http.MethodGet {
			w.Write([]byte(`{"result": {"config": {"params": {"vectors": {"size": 4, "distance": "Cosine"}}}}}`))
			return
		}
		if handler != nil && handler(w, r) {
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
}

func newTestQdrant(t *testing.T, serverURL string) *storage.Qdrant {
	t.Helper()
	client, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:   serverURL,
		Collection: "test_collection",
		Dimension:  4,
	}, storage.WithHTTPTimeout(5*time.Second))
	require.NoError(t, err, "应该成功创建Qdrant客户端")
	return client
}

// TestQdrant_NewQdrant 集合已存在时初始化成功
func TestQdrant_NewQdrant(t *testing.T) {
	server := newQdrantTestServer(t, nil)
	defer server.Close()
	client := newTestQdrant(t, server.URL)
	require.NotNil(t, client)
}

// TestQdrant_NewQdrant_CreatesMissingCollection 集合不存在时自动创建
func TestQdrant_NewQdrant_CreatesMissingCollection(t *testing.T) {
	created := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/new_collection" && r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Path == "/collections/new_collection" && r.Method == http.MethodPut {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			vectors := body["vectors"].(map[string]interface{})
			assert.Equal(t, float64(4), vectors["size"])
			assert.Equal(t, "Cosine", vectors["distance"])
			created = true
			w.Write([]byte(`{"result": true, "status": "ok"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "new_collection",
		Dimension:  4,
	})
	require.NoError(t, err)
	assert.True(t, created, "应发出创建集合请求")
}

// TestQdrant_StoreChunks 写入点并返回确定性point ID
func TestQdrant_StoreChunks(t *testing.T) {
	var gotPoints []map[string]interface{}
	server := newQdrantTestServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/collections/test_collection/points" && r.Method == http.MethodPut {
			var body struct {
				Points []map[string]interface{} `json:"points"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotPoints = body.Points
			w.Write([]byte(`{"status": "ok", "time": 0.01}`))
			return true
		}
		return false
	})
	defer server.Close()
	client := newTestQdrant(t, server.URL)

	submissionUUID := "11111111-2222-3333-4444-555555555555"
	chunks := []types.Chunk{
		{
			Text: "John Smith is proficient in: Go, AWS",
			Metadata: map[string]string{
				constants.MetaKeySection: constants.SectionSkills,
				constants.MetaKeyPerson:  "John Smith",
			},
		},
	}
	embeddings := [][]float64{{0.1, 0.2, 0.3, 0.4}}

	ids, err := client.StoreChunks(context.Background(), submissionUUID, chunks, embeddings)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	// point ID由命名空间和(提交UUID, 块序号)确定性派生，重复入库天然幂等
	expectedID := uuid.NewV5(storage.QdrantPointIDNamespace,
		fmt.Sprintf("submission:%s:chunk:0", submissionUUID)).String()
	assert.Equal(t, expectedID, ids[0])

	require.Len(t, gotPoints, 1)
	payload := gotPoints[0]["payload"].(map[string]interface{})
	assert.Equal(t, submissionUUID, payload["submission_uuid"])
	assert.Equal(t, float64(0), payload["chunk_index"])
	assert.Equal(t, chunks[0].Text, payload["text"])
	assert.Equal(t, "John Smith", payload[constants.MetaKeyPerson])
	assert.Equal(t, constants.SectionSkills, payload[constants.MetaKeySection])
}

// TestQdrant_StoreChunks_EmptyIsLegal 零块零向量是合法结果，空入库直接成功
func TestQdrant_StoreChunks_EmptyIsLegal(t *testing.T) {
	server := newQdrantTestServer(t, nil)
	defer server.Close()
	client := newTestQdrant(t, server.URL)

	ids, err := client.StoreChunks(context.Background(), "uuid", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// TestQdrant_StoreChunks_DimensionMismatch 向量维度与集合配置不符时拒绝
func TestQdrant_StoreChunks_DimensionMismatch(t *testing.T) {
	server := newQdrantTestServer(t, nil)
	defer server.Close()
	client := newTestQdrant(t, server.URL)

	_, err := client.StoreChunks(context.Background(), "uuid",
		[]types.Chunk{{Text: "x"}}, [][]float64{{0.1, 0.2}})
	assert.Error(t, err)
}

// TestQdrant_StoreChunks_CountMismatch 块数与向量数不匹配时拒绝
func TestQdrant_StoreChunks_CountMismatch(t *testing.T) {
	server := newQdrantTestServer(t, nil)
	defer server.Close()
	client := newTestQdrant(t, server.URL)

	_, err := client.StoreChunks(context.Background(), "uuid",
		[]types.Chunk{{Text: "x"}}, nil)
	assert.Error(t, err)
}

// TestQdrant_SearchChunks 检索命中还原成块加分数
func TestQdrant_SearchChunks(t *testing.T) {
	var gotSearch map[string]interface{}
	server := newQdrantTestServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/collections/test_collection/points/search" && r.Method == http.MethodPost {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSearch))
			w.Write([]byte(`{
				"result": [{
					"id": "point-1",
					"score": 0.92,
					"payload": {
						"text": "John Smith is proficient in: Go",
						"section": "skills",
						"person": "John Smith",
						"chunk_index": 0
					}
				}],
				"status": "ok",
				"time": 0.002
			}`))
			return true
		}
		return false
	})
	defer server.Close()
	client := newTestQdrant(t, server.URL)

	filter := map[string]interface{}{
		"must": []map[string]interface{}{
			{"key": "person", "match": map[string]interface{}{"value": "John Smith"}},
		},
	}
	retrieved, err := client.SearchChunks(context.Background(), []float64{0.1, 0.2, 0.3, 0.4}, 3, filter)
	require.NoError(t, err)

	require.Len(t, retrieved, 1)
	assert.Equal(t, "John Smith is proficient in: Go", retrieved[0].Chunk.Text)
	assert.Equal(t, "skills", retrieved[0].Chunk.Metadata[constants.MetaKeySection])
	assert.Equal(t, "John Smith", retrieved[0].Chunk.Metadata[constants.MetaKeyPerson])
	assert.InDelta(t, 0.92, retrieved[0].Score, 0.001)
	// 非字符串payload字段不进元数据
	_, hasIndex := retrieved[0].Chunk.Metadata["chunk_index"]
	assert.False(t, hasIndex)

	assert.Equal(t, float64(3), gotSearch["limit"])
	assert.NotNil(t, gotSearch["filter"], "过滤条件应透传")
	assert.Equal(t, true, gotSearch["with_payload"])
}

// TestQdrant_SearchChunks_DimensionMismatch 查询向量维度不符时拒绝
func TestQdrant_SearchChunks_DimensionMismatch(t *testing.T) {
	server := newQdrantTestServer(t, nil)
	defer server.Close()
	client := newTestQdrant(t, server.URL)

	_, err := client.SearchChunks(context.Background(), []float64{0.1}, 5, nil)
	assert.Error(t, err)
}

// TestQdrant_GetChunksBySubmission 按提交UUID滚动拉取全部点
func TestQdrant_GetChunksBySubmission(t *testing.T) {
	server := newQdrantTestServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/collections/test_collection/points/scroll" && r.Method == http.MethodPost {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotNil(t, body["filter"])
			w.Write([]byte(`{
				"result": {"points": [
					{"id": "p1", "payload": {"text": "chunk one"}},
					{"id": "p2", "payload": {"text": "chunk two"}}
				]}
			}`))
			return true
		}
		return false
	})
	defer server.Close()
	client := newTestQdrant(t, server.URL)

	points, err := client.GetChunksBySubmission(context.Background(), "some-uuid")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "p1", points[0].ID)
	assert.Equal(t, "chunk one", points[0].Payload["text"])
}

// TestQdrant_DeletePoints 删除点，空ID列表不发请求
func TestQdrant_DeletePoints(t *testing.T) {
	deleteCalled := false
	server := newQdrantTestServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/collections/test_collection/points/delete" && r.Method == http.MethodPost {
			deleteCalled = true
			w.Write([]byte(`{"status": "ok", "time": 0.001}`))
			return true
		}
		return false
	})
	defer server.Close()
	client := newTestQdrant(t, server.URL)

	require.NoError(t, client.DeletePoints(context.Background(), nil))
	assert.False(t, deleteCalled, "空ID列表不应发出删除请求")

	require.NoError(t, client.DeletePoints(context.Background(), []string{"p1"}))
	assert.True(t, deleteCalled)
}

// TestQdrant_CountPoints 精确计数
func TestQdrant_CountPoints(t *testing.T) {
	server := newQdrantTestServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/collections/test_collection/points/count" && r.Method == http.MethodPost {
			w.Write([]byte(`{"result": {"count": 42}}`))
			return true
		}
		return false
	})
	defer server.Close()
	client := newTestQdrant(t, server.URL)

	count, err := client.CountPoints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}
