// Package semantic is the sole owner of all Qdrant operations for the card
// collection.
package semantic

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// PointsClient is the subset of the Qdrant points API the store uses.
type PointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// CollectionsClient is the subset of the Qdrant collections API the store uses.
type CollectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore wraps the Qdrant points and collections clients.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      PointsClient
	collections CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients creates a VectorStore from pre-built clients. Used in tests.
func NewWithClients(points PointsClient, collections CollectionsClient, collection string) *VectorStore {
	return &VectorStore{
		points:      points,
		collections: collections,
		collection:  collection,
	}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// PointID derives the deterministic point UUID for one document of a card.
// Same card and index always map to the same point, which is what makes
// re-adding a card an upsert instead of a duplicate.
func PointID(cardID string, docIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", cardID, docIndex))).String()
}

// EnsureCollection creates the cosine-distance collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores vector records, waiting for the write to be applied.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		payload := make(map[string]*pb.Value, len(r.Payload))
		for k, val := range r.Payload {
			switch tv := val.(type) {
			case string:
				payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
			case int:
				payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
			case int64:
				payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
			case float64:
				payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
			case bool:
				payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
			default:
				payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
			}
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Search performs k-NN similarity search, results ordered by score descending.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{
			ID:    r.GetId().GetUuid(),
			Score: r.GetScore(),
			Meta:  make(map[string]string),
		}
		fillFromPayload(&sr, r.GetPayload())
		results[i] = sr
	}
	return results, nil
}

// FetchByCardID retrieves the stored documents of one card by deriving its
// point IDs. A card with no stored points yields an empty slice.
func (v *VectorStore) FetchByCardID(ctx context.Context, cardID string) ([]StoredDoc, error) {
	ids := make([]*pb.PointId, DocsPerCard)
	for i := 0; i < DocsPerCard; i++ {
		ids[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(cardID, i)}}
	}

	resp, err := v.points.Get(ctx, &pb.GetPoints{
		CollectionName: v.collection,
		Ids:            ids,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: get card %s: %w", cardID, err)
	}

	docs := make([]StoredDoc, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		var sr SearchResult
		sr.Meta = make(map[string]string)
		fillFromPayload(&sr, r.GetPayload())
		docs = append(docs, StoredDoc{
			ID:      r.GetId().GetUuid(),
			CardID:  sr.CardID,
			Content: sr.Content,
			Meta:    sr.Meta,
		})
	}
	return docs, nil
}

// DeleteByCardID removes all points of a card.
func (v *VectorStore) DeleteByCardID(ctx context.Context, cardID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("card_id", cardID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete card %s: %w", cardID, err)
	}
	return nil
}

// Count returns the number of stored points.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	resp, err := v.points.Count(ctx, &pb.CountPoints{
		CollectionName: v.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func fillFromPayload(sr *SearchResult, payload map[string]*pb.Value) {
	for k, val := range payload {
		switch k {
		case "content":
			sr.Content = val.GetStringValue()
		case "card_id":
			sr.CardID = val.GetStringValue()
		case "doc_index":
			sr.DocIndex = int(val.GetIntegerValue())
		default:
			switch kind := val.GetKind().(type) {
			case *pb.Value_StringValue:
				if kind.StringValue != "" {
					sr.Meta[k] = kind.StringValue
				}
			case *pb.Value_IntegerValue:
				sr.Meta[k] = strconv.FormatInt(kind.IntegerValue, 10)
			}
		}
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
