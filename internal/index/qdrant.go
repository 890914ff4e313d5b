package index

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/docvec-go/internal/embedder"
	"github.com/54b3r/docvec-go/internal/metadata"
)

// Payload keys used for every point.
const (
	payloadDocument = "document"
	payloadMetadata = "metadata"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantEngine implements [Engine] on a Qdrant collection. Point ids are the
// document UUIDs; the content and metadata record live in the payload.
type QdrantEngine struct {
	client *qdrant.Client
	cfg    *QdrantConfig
	emb    embedder.Embedder
}

// NewQdrantEngine connects to Qdrant and ensures the collection exists,
// sized to the embedder's dimensions with cosine distance.
func NewQdrantEngine(ctx context.Context, cfg *QdrantConfig, emb embedder.Embedder) (*QdrantEngine, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant: failed to create client: %w", err)
	}

	e := &QdrantEngine{client: client, cfg: cfg, emb: emb}
	if err := e.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return e, nil
}

func (e *QdrantEngine) ensureCollection(ctx context.Context) error {
	exists, err := e.client.CollectionExists(ctx, e.cfg.Collection)
	if err != nil {
		return fmt.Errorf("index: qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = e.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: e.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(e.emb.Dimensions()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("index: qdrant: failed to create collection %q: %w", e.cfg.Collection, err)
	}
	return nil
}

func (e *QdrantEngine) upsert(ctx context.Context, rec Record) error {
	vec, err := embedder.EmbedOne(ctx, e.emb, rec.Content)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	payload, err := qdrant.TryValueMap(map[string]any{
		payloadDocument: rec.Content,
		payloadMetadata: rec.Metadata.Any(),
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = e.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: e.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(vec...),
			Payload: payload,
		}},
	})
	return err
}

// Add inserts rec. Qdrant upserts are idempotent, so the existence check is
// a separate read.
func (e *QdrantEngine) Add(ctx context.Context, rec Record) error {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return fmt.Errorf("index: qdrant: add: id %q is not a UUID: %w", rec.ID, err)
	}
	existing, err := e.Get(ctx, []string{rec.ID})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("index: qdrant: add %q: %w", rec.ID, ErrDuplicateID)
	}
	if err := e.upsert(ctx, rec); err != nil {
		return fmt.Errorf("index: qdrant: add failed: %w", err)
	}
	return nil
}

// Get retrieves points by id. Ids that are not UUIDs cannot exist in the
// collection and are skipped. Ids match case-insensitively.
func (e *QdrantEngine) Get(ctx context.Context, ids []string) ([]Record, error) {
	keys, pointIDs := uuidPointIDs(ids)
	if len(pointIDs) == 0 {
		return []Record{}, nil
	}

	points, err := e.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: e.cfg.Collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant: get failed: %w", err)
	}

	byID := make(map[string]Record, len(points))
	for _, p := range points {
		rec := recordFromPayload(p.GetId().GetUuid(), p.GetPayload())
		key, ok := canonicalUUID(rec.ID)
		if !ok {
			continue
		}
		byID[key] = rec
	}
	out := make([]Record, 0, len(byID))
	for _, key := range keys {
		if rec, ok := byID[key]; ok {
			out = append(out, rec)
			delete(byID, key)
		}
	}
	return out, nil
}

// List scrolls the collection in point-id order and returns the requested
// window.
func (e *QdrantEngine) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}
	want, err := scrollLimit(limit, offset)
	if err != nil {
		return nil, err
	}
	points, err := e.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: e.cfg.Collection,
		Limit:          &want,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant: list failed: %w", err)
	}
	if offset >= len(points) {
		return []Record{}, nil
	}
	points = points[offset:]
	out := make([]Record, 0, len(points))
	for _, p := range points {
		out = append(out, recordFromPayload(p.GetId().GetUuid(), p.GetPayload()))
	}
	return out, nil
}

// Update re-embeds and overwrites an existing point.
func (e *QdrantEngine) Update(ctx context.Context, rec Record) error {
	existing, err := e.Get(ctx, []string{rec.ID})
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return fmt.Errorf("index: qdrant: update %q: %w", rec.ID, ErrNotFound)
	}
	if err := e.upsert(ctx, rec); err != nil {
		return fmt.Errorf("index: qdrant: update failed: %w", err)
	}
	return nil
}

// Delete removes points by id.
func (e *QdrantEngine) Delete(ctx context.Context, ids []string) error {
	_, pointIDs := uuidPointIDs(ids)
	if len(pointIDs) == 0 {
		return nil
	}

	_, err := e.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: e.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("index: qdrant: delete failed: %w", err)
	}
	return nil
}

// Query performs a cosine similarity search and returns the top n results.
func (e *QdrantEngine) Query(ctx context.Context, text string, n int) ([]Match, error) {
	qvec, err := embedder.EmbedOne(ctx, e.emb, text)
	if err != nil {
		return nil, fmt.Errorf("index: qdrant: query: %w", err)
	}

	limit := uint64(n)
	results, err := e.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: e.cfg.Collection,
		Query:          qdrant.NewQuery(qvec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant: search failed: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Record: recordFromPayload(r.GetId().GetUuid(), r.GetPayload()),
			Score:  r.GetScore(),
		})
	}
	return matches, nil
}

// Count returns the exact number of points in the collection.
func (e *QdrantEngine) Count(ctx context.Context) (int, error) {
	n, err := e.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: e.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("index: qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Ping checks that the Qdrant server is reachable.
func (e *QdrantEngine) Ping(ctx context.Context) error {
	if _, err := e.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("index: qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (e *QdrantEngine) Close() error {
	return e.client.Close()
}

// canonicalUUID returns id in the lowercase hyphenated form Qdrant reports
// point ids in.
func canonicalUUID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// uuidPointIDs converts ids to point ids, dropping anything that is not a
// UUID. keys holds the canonical form of each kept id, in input order.
func uuidPointIDs(ids []string) (keys []string, pointIDs []*qdrant.PointId) {
	keys = make([]string, 0, len(ids))
	pointIDs = make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		key, ok := canonicalUUID(id)
		if !ok {
			continue
		}
		keys = append(keys, key)
		pointIDs = append(pointIDs, qdrant.NewIDUUID(key))
	}
	return keys, pointIDs
}

// scrollLimit is the number of points to scroll so that offset+limit records
// are available. Scroll limits are uint32.
func scrollLimit(limit, offset int) (uint32, error) {
	if limit < 0 || offset < 0 {
		return 0, fmt.Errorf("index: qdrant: negative limit %d or offset %d", limit, offset)
	}
	total := uint64(limit) + uint64(offset)
	if total > math.MaxUint32 {
		return 0, fmt.Errorf("index: qdrant: offset %d plus limit %d exceeds %d", offset, limit, uint32(math.MaxUint32))
	}
	return uint32(total), nil
}

// recordFromPayload rebuilds a Record from a point payload. Integer payload
// values come back as numbers; nested values are dropped since they cannot
// have been written by this engine.
func recordFromPayload(id string, p map[string]*qdrant.Value) Record {
	rec := Record{ID: id, Metadata: metadata.Map{}}
	if v, ok := p[payloadDocument]; ok {
		rec.Content = v.GetStringValue()
	}
	if v, ok := p[payloadMetadata]; ok {
		for k, f := range v.GetStructValue().GetFields() {
			if mv, ok := valueFromQdrant(f); ok {
				rec.Metadata[k] = mv
			}
		}
	}
	return rec
}

func valueFromQdrant(v *qdrant.Value) (metadata.Value, bool) {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return metadata.String(k.StringValue), true
	case *qdrant.Value_DoubleValue:
		return metadata.Number(k.DoubleValue), true
	case *qdrant.Value_IntegerValue:
		return metadata.Number(float64(k.IntegerValue)), true
	case *qdrant.Value_BoolValue:
		return metadata.Bool(k.BoolValue), true
	default:
		return metadata.Value{}, false
	}
}
