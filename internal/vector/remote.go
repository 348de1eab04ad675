package vector

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/models"
	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// pointIDNamespace derives stable point ids from item ids; Qdrant only accepts UUIDs or
// unsigned integers.
var pointIDNamespace = uuid.MustParse("5a3c4f0e-8c1d-4b6e-9f2a-7d0b1e3c6a59")

// pointsAPI is the subset of qdrant.PointsClient used by RemoteIndex.
type pointsAPI interface {
	Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
	Search(ctx context.Context, in *qdrant.SearchPoints, opts ...grpc.CallOption) (*qdrant.SearchResponse, error)
	Count(ctx context.Context, in *qdrant.CountPoints, opts ...grpc.CallOption) (*qdrant.CountResponse, error)
}

// collectionsAPI is the subset of qdrant.CollectionsClient used to prepare the collection.
type collectionsAPI interface {
	Get(ctx context.Context, in *qdrant.GetCollectionInfoRequest, opts ...grpc.CallOption) (*qdrant.GetCollectionInfoResponse, error)
	Create(ctx context.Context, in *qdrant.CreateCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error)
}

// RemoteIndex stores vectors in a Qdrant collection configured for Euclidean distance.
// Every call is retried with Fibonacci backoff; when retries run out the error wraps
// ErrStorageUnavailable.
type RemoteIndex struct {
	points     pointsAPI
	collection string
	dim        int
	maxRetries uint64
	backoff    time.Duration
	conn       *grpc.ClientConn
	logger     *zap.Logger
}

// DialRemote connects to Qdrant at cfg.Address and makes sure the collection exists with
// the right vector size.
func DialRemote(ctx context.Context, cfg *config.RemoteConfig, dim int, logger *zap.Logger) (*RemoteIndex, error) {
	if cfg.Address == "" {
		return nil, errors.New("remote address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}
	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to qdrant: %w", err)
	}
	r := newRemoteIndex(qdrant.NewPointsClient(conn), cfg, dim, logger)
	r.conn = conn

	setupCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		setupCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := r.ensureCollection(setupCtx, qdrant.NewCollectionsClient(conn)); err != nil {
		conn.Close()
		return nil, err
	}
	return r, nil
}

func newRemoteIndex(points pointsAPI, cfg *config.RemoteConfig, dim int, logger *zap.Logger) *RemoteIndex {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &RemoteIndex{
		points:     points,
		collection: cfg.Collection,
		dim:        dim,
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// ensureCollection creates the collection when it is missing and rejects an existing one
// with a different vector size.
func (r *RemoteIndex) ensureCollection(ctx context.Context, collections collectionsAPI) error {
	var info *qdrant.GetCollectionInfoResponse
	err := r.withRetry(ctx, "get collection", func(ctx context.Context) error {
		var err error
		info, err = collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: r.collection})
		return err
	})
	if err == nil {
		size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && int(size) != r.dim {
			return fmt.Errorf("%w: collection %s has size %d, expected %d", ErrDimensionMismatch, r.collection, size, r.dim)
		}
		return nil
	}
	if !isNotFound(err) {
		return err
	}
	r.logger.Info("creating qdrant collection", zap.String("collection", r.collection), zap.Int("size", r.dim))
	return r.withRetry(ctx, "create collection", func(ctx context.Context) error {
		_, err := collections.Create(ctx, &qdrant.CreateCollection{
			CollectionName: r.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(r.dim),
				Distance: qdrant.Distance_Euclid,
			}),
		})
		return err
	})
}

// remoteError keeps the final gRPC error reachable through errors.As after retries.
type remoteError struct {
	op  string
	err error
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageUnavailable, e.op, e.err)
}

func (e *remoteError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func (e *remoteError) Unwrap() error {
	return e.err
}

func isNotFound(err error) bool {
	var re *remoteError
	return errors.As(err, &re) && status.Code(re.err) == codes.NotFound
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal, codes.Unknown:
		return true
	}
	return false
}

func (r *RemoteIndex) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(r.maxRetries, retry.NewFibonacci(r.backoff))
	var last error
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		last = fn(ctx)
		if last != nil && retryable(last) {
			r.logger.Debug("qdrant call failed, retrying", zap.String("op", op), zap.Error(last))
			return retry.RetryableError(last)
		}
		return last
	})
	if err == nil {
		return nil
	}
	if last == nil {
		last = err
	}
	return &remoteError{op: op, err: last}
}

// Upsert writes records as points keyed by a UUID derived from the item id.
func (r *RemoteIndex) Upsert(ctx context.Context, records []models.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := checkDimensions(records, r.dim); err != nil {
		return 0, err
	}
	unique := dedupe(records)
	points := make([]*qdrant.PointStruct, 0, len(unique))
	for _, rec := range unique {
		meta := rec.Metadata
		meta.ID = rec.ID
		points = append(points, &qdrant.PointStruct{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: PointID(rec.ID)}},
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: rec.Vector}}},
			Payload: itemToPayload(meta),
		})
	}
	err := r.withRetry(ctx, "upsert", func(ctx context.Context) error {
		_, err := r.points.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: r.collection,
			Points:         points,
			Wait:           proto.Bool(true),
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Query searches the collection and converts Euclidean distances to scores.
func (r *RemoteIndex) Query(ctx context.Context, query []float32, k int) ([]models.Match, error) {
	if err := checkQuery(query, k, r.dim); err != nil {
		return nil, err
	}
	var resp *qdrant.SearchResponse
	err := r.withRetry(ctx, "search", func(ctx context.Context) error {
		var err error
		resp, err = r.points.Search(ctx, &qdrant.SearchPoints{
			CollectionName: r.collection,
			Vector:         query,
			Limit:          uint64(k),
			WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	matches := make([]models.Match, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		item := payloadToItem(hit.GetPayload())
		if item.ID == "" {
			continue
		}
		matches = append(matches, models.Match{
			ID:       item.ID,
			Score:    Score(float64(hit.GetScore())),
			Metadata: item,
		})
	}
	return matches, nil
}

// Size returns the exact point count of the collection.
func (r *RemoteIndex) Size(ctx context.Context) (int, error) {
	var resp *qdrant.CountResponse
	err := r.withRetry(ctx, "count", func(ctx context.Context) error {
		var err error
		resp, err = r.points.Count(ctx, &qdrant.CountPoints{
			CollectionName: r.collection,
			Exact:          proto.Bool(true),
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(resp.GetResult().GetCount()), nil
}

// Dimensions returns the collection vector size.
func (r *RemoteIndex) Dimensions() int {
	return r.dim
}

// Backend returns BackendLiveRemote.
func (r *RemoteIndex) Backend() BackendKind {
	return BackendLiveRemote
}

// Close closes the gRPC connection.
func (r *RemoteIndex) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// PointID returns the Qdrant point UUID for an item id.
func PointID(id string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(id)).String()
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func listValue(items []string) *qdrant.Value {
	values := make([]*qdrant.Value, len(items))
	for i, s := range items {
		values[i] = stringValue(s)
	}
	return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
}

func itemToPayload(it models.Item) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"id":          stringValue(it.ID),
		"title":       stringValue(it.Title),
		"description": stringValue(it.Description),
		"brand":       stringValue(it.Brand),
		"price":       {Kind: &qdrant.Value_DoubleValue{DoubleValue: it.Price}},
		"categories":  listValue(it.Categories),
		"images":      listValue(it.Images),
		"material":    stringValue(it.Material),
		"color":       stringValue(it.Color),
	}
}

func payloadToItem(payload map[string]*qdrant.Value) models.Item {
	it := models.Item{
		ID:          payload["id"].GetStringValue(),
		Title:       payload["title"].GetStringValue(),
		Description: payload["description"].GetStringValue(),
		Brand:       payload["brand"].GetStringValue(),
		Categories:  payloadStrings(payload["categories"]),
		Images:      payloadStrings(payload["images"]),
		Material:    payload["material"].GetStringValue(),
		Color:       payload["color"].GetStringValue(),
	}
	switch v := payload["price"].GetKind().(type) {
	case *qdrant.Value_DoubleValue:
		it.Price = v.DoubleValue
	case *qdrant.Value_IntegerValue:
		it.Price = float64(v.IntegerValue)
	}
	it.Normalize()
	return it
}

func payloadStrings(v *qdrant.Value) []string {
	list := v.GetListValue().GetValues()
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.GetStringValue())
	}
	return out
}
