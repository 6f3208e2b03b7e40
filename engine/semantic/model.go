package semantic

import (
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/askcv/askcv/engine/domain"
)

// Payload keys stored with every point.
const (
	keyChunkID = "chunk_id"
	keySource  = "source"
	keyText    = "text"
	keyOffset  = "offset"
	keyBuildID = "build_id"
)

// pointNamespace scopes chunk point IDs.
var pointNamespace = uuid.MustParse("6f1c2d3e-8a4b-5c6d-9e0f-a1b2c3d4e5f6")

// PointID is the deterministic Qdrant ID of a chunk: the same source,
// offset and text always map to the same point.
func PointID(c domain.Chunk) string {
	key := fmt.Sprintf("%s\x00%d\x00%s", c.Source, c.Offset, c.Text)
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}

func toPoint(c domain.Chunk, buildID string) *pb.PointStruct {
	return &pb.PointStruct{
		Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(c)}},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Embedding}},
		},
		Payload: map[string]*pb.Value{
			keyChunkID: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.ID)}},
			keySource:  {Kind: &pb.Value_StringValue{StringValue: c.Source}},
			keyText:    {Kind: &pb.Value_StringValue{StringValue: c.Text}},
			keyOffset:  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Offset)}},
			keyBuildID: {Kind: &pb.Value_StringValue{StringValue: buildID}},
		},
	}
}

func fromScored(p *pb.ScoredPoint) domain.SearchResult {
	pl := p.GetPayload()
	return domain.SearchResult{
		Chunk: domain.Chunk{
			ID:     int(pl[keyChunkID].GetIntegerValue()),
			Source: pl[keySource].GetStringValue(),
			Text:   pl[keyText].GetStringValue(),
			Offset: int(pl[keyOffset].GetIntegerValue()),
		},
		Score: p.GetScore(),
	}
}
