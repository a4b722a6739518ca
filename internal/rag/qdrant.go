package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payload keys beyond the ChunkMeta fields.
const (
	payloadText    = "text"
	payloadChunkID = "chunkId"
)

// pointNamespace seeds the UUIDv5 point IDs derived from chunk IDs. Qdrant
// only accepts UUIDs or unsigned integers as point IDs.
var pointNamespace = uuid.MustParse("8c5d1f0e-4b7a-4f43-9a55-3d1c8b2e6f10")

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the collection name (default: document_chunks).
	Collection string

	// VectorSize is the embedding dimensionality, used when the collection
	// has to be created.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant collection.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration.
	cfg QdrantConfig
}

// NewQdrantIndex connects to Qdrant and ensures the collection and its
// documentId payload index exist.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "document_chunks"
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

// ensureCollection creates the collection and keyword index if missing.
func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return Unavailable("qdrant: check collection", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.cfg.Collection, err)
	}

	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.cfg.Collection,
		FieldName:      MetaDocumentID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to index %s: %w", MetaDocumentID, err)
	}
	return nil
}

// PointID returns the deterministic Qdrant point UUID for a chunk ID, so
// re-adding a chunk overwrites the same point.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Add upserts chunk as a single point and waits for it to be applied.
func (q *QdrantIndex) Add(ctx context.Context, chunk Chunk) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(PointID(chunk.ID)),
		Vectors: qdrant.NewVectors(chunk.Vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			payloadText:     chunk.Text,
			payloadChunkID:  chunk.ID,
			MetaDocumentID:  chunk.Meta.DocumentID,
			MetaFileName:    chunk.Meta.FileName,
			MetaChunkIndex:  int64(chunk.Meta.ChunkIndex),
			MetaTotalChunks: int64(chunk.Meta.TotalChunks),
		}),
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Wait:           &wait,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return Unavailable("qdrant: upsert "+chunk.ID, err)
	}
	return nil
}

// Query runs a cosine similarity search restricted by filter.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, filter Filter, topK int) ([]Match, error) {
	if topK < 1 {
		return []Match{}, nil
	}

	limit := uint64(topK)
	req := &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter.DocumentID != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(MetaDocumentID, filter.DocumentID)},
		}
	}

	results, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, Unavailable("qdrant: query", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		p := r.GetPayload()
		matches = append(matches, Match{
			Text:  p[payloadText].GetStringValue(),
			Score: r.GetScore(),
			Meta: ChunkMeta{
				DocumentID:  p[MetaDocumentID].GetStringValue(),
				FileName:    p[MetaFileName].GetStringValue(),
				ChunkIndex:  int(p[MetaChunkIndex].GetIntegerValue()),
				TotalChunks: int(p[MetaTotalChunks].GetIntegerValue()),
			},
		})
	}
	return matches, nil
}

// Ping checks that Qdrant is reachable.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return Unavailable("qdrant: health check", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
