package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fyrsmithlabs/docrag/internal/documents"
	"github.com/fyrsmithlabs/docrag/internal/reranker"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("docrag.vectorstore.qdrant")

// Payload keys written with every point.
const (
	payloadID      = "id"
	payloadContent = "content"
	payloadSource  = "source"
	payloadChunk   = "chunk"
)

// QdrantConfig holds configuration for Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP)
	Port int

	// Collection is the collection holding the chunks.
	// Default: "epstein"
	Collection string

	// UseTLS enables TLS encryption for gRPC connection.
	UseTLS bool

	// APIKey is sent with every request when set.
	APIKey string

	// Distance is the similarity metric for vector search.
	// Default: Cosine
	Distance qdrant.Distance

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB (an indexing batch of 1000 chunks with vectors)
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "epstein"
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024 // 50MB
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if err := ValidateCollectionName(c.Collection); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// QdrantStore implements Store on a remote Qdrant server using the native
// gRPC client.
//
// The collection is created lazily by the first Index call, because the
// vector size is only known once the first batch has been embedded.
type QdrantStore struct {
	client   *qdrant.Client
	config   QdrantConfig
	reranker reranker.Reranker
	logger   *zap.Logger

	mu     sync.Mutex
	exists bool
}

// NewQdrantStore connects to Qdrant and performs a health check.
func NewQdrantStore(config QdrantConfig, opts ...StoreOption) (*QdrantStore, error) {
	o := applyOptions(opts)

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		o.logger.Warn("Qdrant gRPC using plaintext (TLS disabled)",
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	o.logger.Info("QdrantStore initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
	)

	return &QdrantStore{
		client:   client,
		config:   config,
		reranker: o.reranker,
		logger:   o.logger,
	}, nil
}

// collectionExists reports whether the collection exists, caching a
// positive answer.
func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return true, nil
	}
	ok, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	s.exists = ok
	return ok, nil
}

// Reset deletes the collection if it exists. Index recreates it.
func (s *QdrantStore) Reset(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Reset")
	defer span.End()
	span.SetAttributes(attribute.String("collection", s.config.Collection))

	exists, err := s.collectionExists(ctx)
	if err == nil && exists {
		err = s.client.DeleteCollection(ctx, s.config.Collection)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderQdrant, "reset", err)
		return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
	}

	s.mu.Lock()
	s.exists = false
	s.mu.Unlock()

	s.logger.Info("collection reset", zap.String("collection", s.config.Collection))
	recordOperation(ProviderQdrant, "reset", nil)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// ensureCollection creates the collection with the given vector size if it
// does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context, vectorSize int) error {
	exists, err := s.collectionExists(ctx)
	if err != nil || exists {
		return err
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: s.config.Distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}

	s.mu.Lock()
	s.exists = true
	s.mu.Unlock()

	s.logger.Info("collection created",
		zap.String("collection", s.config.Collection),
		zap.Int("vector_size", vectorSize),
	)
	return nil
}

// Index upserts records as points.
func (s *QdrantStore) Index(ctx context.Context, records []Record) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Index")
	defer span.End()
	span.SetAttributes(attribute.Int("record_count", len(records)))

	if err := validateRecords(records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := s.ensureCollection(ctx, len(records[0].Embedding)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderQdrant, "index", err)
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: toPayload(r),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderQdrant, "index", err)
		return fmt.Errorf("upserting points: %w", err)
	}

	IndexedRecords.WithLabelValues(ProviderQdrant).Add(float64(len(records)))
	recordOperation(ProviderQdrant, "index", nil)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search queries the fetchK nearest points with their vectors and reranks
// them down to k.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k, fetchK int) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.Int("k", k),
		attribute.Int("fetch_k", fetchK),
	)

	start := time.Now()
	defer func() {
		SearchDuration.WithLabelValues(ProviderQdrant).Observe(time.Since(start).Seconds())
	}()

	fetchK, err := normalizeSearch(query, k, fetchK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	exists, err := s.collectionExists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderQdrant, "search", err)
		return nil, err
	}
	if !exists {
		span.SetStatus(codes.Ok, "no collection")
		return []SearchResult{}, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(fetchK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderQdrant, "search", err)
		return nil, fmt.Errorf("searching collection %s: %w", s.config.Collection, err)
	}

	candidates := make([]SearchResult, len(points))
	for i, p := range points {
		candidates[i] = fromScoredPoint(p)
	}

	results, err := rerank(ctx, s.reranker, query, candidates, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderQdrant, "search", err)
		return nil, err
	}

	recordOperation(ProviderQdrant, "search", nil)
	span.SetAttributes(
		attribute.Int("candidates_count", len(candidates)),
		attribute.Int("results_count", len(results)),
	)
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exists, err := s.collectionExists(ctx)
	if err != nil || !exists {
		return 0, err
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID returns id when it is already a UUID, otherwise a name-based UUID
// derived from it. Qdrant accepts only UUIDs and integers as point IDs.
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

// toPayload builds the point payload for a record.
func toPayload(r Record) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		payloadID:      qdrant.NewValueString(r.ID),
		payloadContent: qdrant.NewValueString(r.Content),
		payloadSource:  qdrant.NewValueString(r.Metadata.Source),
		payloadChunk:   qdrant.NewValueInt(int64(r.Metadata.Chunk)),
	}
}

// fromScoredPoint converts a query hit back into a search candidate.
func fromScoredPoint(p *qdrant.ScoredPoint) SearchResult {
	payload := p.GetPayload()
	result := SearchResult{
		ID:      payload[payloadID].GetStringValue(),
		Content: payload[payloadContent].GetStringValue(),
		Metadata: documents.ChunkMetadata{
			Source: payload[payloadSource].GetStringValue(),
			Chunk:  int(payload[payloadChunk].GetIntegerValue()),
		},
		Score: p.GetScore(),
	}
	if result.ID == "" {
		result.ID = p.GetId().GetUuid()
	}

	v := p.GetVectors().GetVector()
	if dense := v.GetDense(); dense != nil {
		result.embedding = dense.GetData()
	} else {
		result.embedding = v.GetData()
	}
	return result
}

var _ Store = (*QdrantStore)(nil)
