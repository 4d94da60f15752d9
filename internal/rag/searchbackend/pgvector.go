package searchbackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
	"github.com/yuewanzhe/ragpipeline/internal/rag/ragerr"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// chunkRow is the Postgres row backing PGVectorBackend, one row per document
// chunk. The table is created/maintained by ingestion, out of scope here;
// this adapter only reads it.
type chunkRow struct {
	ChunkID    string `gorm:"column:chunk_id"`
	FileID     string `gorm:"column:file_id"`
	DocID      string `gorm:"column:doc_id"`
	ChunkIndex int    `gorm:"column:chunk_index"`
	Filename   string `gorm:"column:filename"`
	Text       string `gorm:"column:text"`
	Page       int    `gorm:"column:page"`
	URI        string `gorm:"column:uri"`
	Embedding  pgvector.Vector `gorm:"column:embedding"`
	Distance   float64 `gorm:"column:distance"`
	Rank       float64 `gorm:"column:rank"`
}

func (chunkRow) TableName() string { return "documents" }

// PGVectorBackend implements SearchBackend against a Postgres table with a
// pgvector `embedding` column; lexical ranking runs ts_rank_cd over
// to_tsvector('simple', text), computed at query time.
// It is the concrete adapter exercising the teacher's pgvector-go +
// gorm.io/driver/postgres stack (SPEC_FULL.md §2.2) in place of the
// Weaviate client absent from the retrieved pack, while preserving the
// hybrid/near_text operator contract of §4.2.
type PGVectorBackend struct {
	DB *gorm.DB
}

func NewPGVectorBackend(db *gorm.DB) *PGVectorBackend {
	return &PGVectorBackend{DB: db}
}

func (b *PGVectorBackend) Query(ctx context.Context, q Query) ([]*document.Document, error) {
	if q.TextField != "" && q.TextField != "text" {
		// Only the "text" column is materialized by this adapter's schema;
		// anything else is a schema mismatch (the coordinator does not retry).
		return nil, ragerr.New(ragerr.SchemaError, fmt.Sprintf("unknown text field %q", q.TextField))
	}

	switch q.Mode {
	case NearText:
		return b.queryVector(ctx, q, q.DistanceCapOrDefault())
	default:
		return b.queryHybrid(ctx, q)
	}
}

// DistanceCapOrDefault returns q.DistanceCap, or NearTextDistanceCap when unset.
func (q Query) DistanceCapOrDefault() float64 {
	if q.DistanceCap > 0 {
		return q.DistanceCap
	}
	return NearTextDistanceCap
}

func (b *PGVectorBackend) queryVector(ctx context.Context, q Query, distanceCap float64) ([]*document.Document, error) {
	if len(q.QueryEmbedding) == 0 {
		return nil, ragerr.New(ragerr.InvalidInput, "near_text requires a query embedding")
	}
	vec := toPGVector(q.QueryEmbedding)

	var rows []chunkRow
	tx := b.DB.WithContext(ctx).Table("documents").
		Select("*, embedding <=> ? as distance", vec).
		Where("embedding <=> ? <= ?", vec, distanceCap)
	tx = applyFilters(tx, q.Filters)
	err := tx.Order("distance asc").Limit(q.TopK).Find(&rows).Error
	if err != nil {
		return nil, ragerr.Wrap(ragerr.BackendUnavailable, "pgvector near_text query failed", err)
	}
	return rowsToDocuments(rows), nil
}

func (b *PGVectorBackend) queryHybrid(ctx context.Context, q Query) ([]*document.Document, error) {
	alpha := q.Alpha
	if alpha <= 0 && alpha != 0 {
		alpha = 0.6
	}
	var rows []chunkRow
	var vecScore, lexScore string
	var vecArgs, lexArgs []any
	if len(q.QueryEmbedding) > 0 {
		vecScore = "(1 - (embedding <=> ?))"
		vecArgs = []any{toPGVector(q.QueryEmbedding)}
	} else {
		vecScore = "0"
	}
	if q.QueryText != "" {
		lexScore = "ts_rank_cd(to_tsvector('simple', text), plainto_tsquery('simple', ?))"
		lexArgs = []any{q.QueryText}
	} else {
		lexScore = "0"
	}
	scoreExpr := fmt.Sprintf("*, (? * %s + (1 - ?) * %s) as rank", vecScore, lexScore)
	selectArgs := append([]any{alpha}, vecArgs...)
	selectArgs = append(selectArgs, alpha)
	selectArgs = append(selectArgs, lexArgs...)

	tx := b.DB.WithContext(ctx).Table("documents").
		Select(scoreExpr, selectArgs...)
	tx = applyFilters(tx, q.Filters)
	err := tx.Order("rank desc").Limit(q.TopK).Find(&rows).Error
	if err != nil {
		return nil, ragerr.Wrap(ragerr.BackendUnavailable, "pgvector hybrid query failed", err)
	}
	return rowsToDocuments(rows), nil
}

func applyFilters(tx *gorm.DB, filters map[string]any) *gorm.DB {
	f := TranslateFilters(filters)
	if f == nil {
		return tx
	}
	return applyFilter(tx, *f)
}

func applyFilter(tx *gorm.DB, f Filter) *gorm.DB {
	switch f.Op {
	case "text_contains":
		return tx.Where(fmt.Sprintf("%s ILIKE ?", gormIdent(f.Field)), "%"+fmt.Sprint(f.Value)+"%")
	case "equal":
		return tx.Where(fmt.Sprintf("%s = ?", gormIdent(f.Field)), f.Value)
	case "or":
		q := tx.Session(&gorm.Session{NewDB: true}).Model(&chunkRow{})
		for _, c := range f.Children {
			q = q.Or(applyFilter(tx.Session(&gorm.Session{NewDB: true}), c))
		}
		return tx.Where(q)
	case "and":
		for _, c := range f.Children {
			tx = applyFilter(tx, c)
		}
		return tx
	}
	return tx
}

// gormIdent guards against SQL injection in dynamically supplied filter
// field names by allow-listing identifier characters.
func gormIdent(field string) string {
	var b strings.Builder
	for _, r := range field {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toPGVector(v []float64) pgvector.Vector {
	f32 := make([]float32, len(v))
	for i, x := range v {
		f32[i] = float32(x)
	}
	return pgvector.NewVector(f32)
}

func rowsToDocuments(rows []chunkRow) []*document.Document {
	out := make([]*document.Document, 0, len(rows))
	for _, r := range rows {
		d := document.New(r.Text)
		d.DocID = r.DocID
		d.FileID = r.FileID
		d.ChunkID = r.ChunkID
		idx := r.ChunkIndex
		d.ChunkIndex = &idx
		d.Title = r.Filename
		page := r.Page
		d.Page = &page
		d.URI = r.URI
		d.Metadata["score"] = r.Rank
		d.Metadata["distance"] = r.Distance
		if r.Embedding.Slice() != nil {
			vec := make([]float64, len(r.Embedding.Slice()))
			for i, f := range r.Embedding.Slice() {
				vec[i] = float64(f)
			}
			d.Metadata["vector"] = vec
		}
		out = append(out, d)
	}
	return out
}
