package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertResp *pb.PointsOperationResponse
	upsertErr  error

	deleteResp *pb.PointsOperationResponse
	deleteErr  error

	searchReq  *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error

	getReq  *pb.GetPoints
	getResp *pb.GetResponse
	getErr  error

	countResp *pb.CountResponse
	countErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return m.upsertResp, m.upsertErr
}
func (m *mockPoints) Delete(_ context.Context, _ *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	return m.deleteResp, m.deleteErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}
func (m *mockPoints) Get(_ context.Context, in *pb.GetPoints, _ ...grpc.CallOption) (*pb.GetResponse, error) {
	m.getReq = in
	return m.getResp, m.getErr
}
func (m *mockPoints) Count(_ context.Context, _ *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	return m.countResp, m.countErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	createResp *pb.CollectionOperationResponse
	createErr  error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, _ *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return m.createResp, m.createErr
}

func strVal(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intVal(n int64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}}
}

// --- Tests ---

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("cardhash", 0)
	b := PointID("cardhash", 0)
	if a != b {
		t.Fatalf("same inputs produced %s and %s", a, b)
	}
	if PointID("cardhash", 1) == a {
		t.Fatal("different doc index produced same point ID")
	}
	if PointID("otherhash", 0) == a {
		t.Fatal("different card produced same point ID")
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "cards"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "cards")
	if err := vs.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{}},
		createResp: &pb.CollectionOperationResponse{Result: true},
	}
	vs := NewWithClients(&mockPoints{}, cols, "cards")
	if err := vs.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureCollection_ListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	vs := NewWithClients(&mockPoints{}, cols, "cards")
	if err := vs.EnsureCollection(context.Background(), 768); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert_PayloadMapping(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "cards")

	rec := VectorRecord{
		ID:        PointID("abc", 0),
		Embedding: []float32{0.1, 0.2},
		Payload: map[string]any{
			"content":   "text",
			"card_id":   "abc",
			"doc_index": 0,
			"pinned":    true,
			"score":     0.5,
		},
	}
	if err := vs.Upsert(context.Background(), []VectorRecord{rec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if pts.upsertReq == nil || len(pts.upsertReq.Points) != 1 {
		t.Fatal("upsert request not captured")
	}
	payload := pts.upsertReq.Points[0].Payload
	if payload["content"].GetStringValue() != "text" {
		t.Fatal("string payload lost")
	}
	if payload["doc_index"].GetIntegerValue() != 0 {
		t.Fatal("int payload lost")
	}
	if !payload["pinned"].GetBoolValue() {
		t.Fatal("bool payload lost")
	}
	if payload["score"].GetDoubleValue() != 0.5 {
		t.Fatal("float payload lost")
	}
	if pts.upsertReq.Wait == nil || !*pts.upsertReq.Wait {
		t.Fatal("upsert must wait for application")
	}
}

func TestUpsert_Empty(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("should not be called")}
	vs := NewWithClients(pts, &mockCollections{}, "cards")
	if err := vs.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert should be a no-op: %v", err)
	}
}

func TestSearch_MapsResults(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
					Score: 0.91,
					Payload: map[string]*pb.Value{
						"content":   strVal("doc text"),
						"card_id":   strVal("abc"),
						"doc_index": intVal(2),
						"name":      strVal("Jordan"),
						"revision":  intVal(0),
					},
				},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "cards")

	results, err := vs.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	r := results[0]
	if r.ID != "p1" || r.Score != 0.91 || r.Content != "doc text" || r.CardID != "abc" || r.DocIndex != 2 {
		t.Fatalf("bad mapping: %+v", r)
	}
	if r.Meta["name"] != "Jordan" {
		t.Fatalf("meta lost: %+v", r.Meta)
	}
	if r.Meta["revision"] != "0" {
		t.Fatalf("zero-valued integer meta lost: %+v", r.Meta)
	}
	if pts.searchReq.Limit != 5 {
		t.Fatalf("limit = %d", pts.searchReq.Limit)
	}
}

func TestSearch_Error(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("boom")}
	vs := NewWithClients(pts, &mockCollections{}, "cards")
	if _, err := vs.Search(context.Background(), []float32{1}, 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchByCardID(t *testing.T) {
	pts := &mockPoints{
		getResp: &pb.GetResponse{
			Result: []*pb.RetrievedPoint{
				{
					Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID("abc", 0)}},
					Payload: map[string]*pb.Value{
						"content": strVal("identity doc"),
						"card_id": strVal("abc"),
						"name":    strVal("Jordan"),
					},
				},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "cards")

	docs, err := vs.FetchByCardID(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FetchByCardID: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs", len(docs))
	}
	if docs[0].CardID != "abc" || docs[0].Content != "identity doc" {
		t.Fatalf("bad doc: %+v", docs[0])
	}

	// All four derived point IDs are requested even if fewer exist.
	if len(pts.getReq.Ids) != DocsPerCard {
		t.Fatalf("requested %d ids, want %d", len(pts.getReq.Ids), DocsPerCard)
	}
}

func TestFetchByCardID_Missing(t *testing.T) {
	pts := &mockPoints{getResp: &pb.GetResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "cards")
	docs, err := vs.FetchByCardID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no docs, got %d", len(docs))
	}
}

func TestDeleteByCardID(t *testing.T) {
	pts := &mockPoints{deleteResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "cards")
	if err := vs.DeleteByCardID(context.Background(), "abc"); err != nil {
		t.Fatalf("DeleteByCardID: %v", err)
	}
}

func TestCount(t *testing.T) {
	pts := &mockPoints{
		countResp: &pb.CountResponse{Result: &pb.CountResult{Count: 12}},
	}
	vs := NewWithClients(pts, &mockCollections{}, "cards")
	n, err := vs.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 12 {
		t.Fatalf("count = %d", n)
	}
}

func TestClose_NoConn(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "cards")
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
