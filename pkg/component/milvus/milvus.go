// Package milvus wraps the Milvus v2 SDK for the chunk vector collection.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/legal-rag/pkg/component/storage"
	milvusopts "github.com/kart-io/legal-rag/pkg/options/milvus"
)

const (
	// PrimaryField holds the chunk ID.
	PrimaryField = "id"
	// VectorField holds the chunk embedding.
	VectorField = "embedding"
)

var _ storage.Client = (*Client)(nil)

// Client wraps the Milvus SDK client bound to one collection.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New connects to Milvus.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

func (c *Client) Name() string {
	return "milvus"
}

// Ping checks that the collection is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(c.opts.Collection))
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()
	return c.client.Close(ctx)
}

// Collection returns the bound collection name.
func (c *Client) Collection() string {
	return c.opts.Collection
}

// CollectionSchema describes the collection's scalar fields.
type CollectionSchema struct {
	Description string
	Dimension   int
	MetaFields  []MetaField
}

// MetaField is a scalar field of the collection.
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // VARCHAR only
}

// EnsureCollection creates, indexes and loads the collection if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	name := c.opts.Collection
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return c.load(ctx)
	}

	collSchema := entity.NewSchema().
		WithName(name).
		WithDescription(schema.Description).
		WithAutoID(false)

	collSchema.WithField(
		entity.NewField().
			WithName(PrimaryField).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(256).
			WithIsPrimaryKey(true),
	)
	collSchema.WithField(
		entity.NewField().
			WithName(VectorField).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)),
	)
	for _, f := range schema.MetaFields {
		field := entity.NewField().
			WithName(f.Name).
			WithDataType(f.DataType)
		if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
			field.WithMaxLength(int64(f.MaxLen))
		}
		collSchema.WithField(field)
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, VectorField, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return c.load(ctx)
}

func (c *Client) load(ctx context.Context) error {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(c.opts.Collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// InsertData is a column batch keyed by primary ID.
type InsertData struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]any
}

// Insert writes a batch and flushes it.
func (c *Client) Insert(ctx context.Context, data *InsertData) error {
	if len(data.IDs) == 0 {
		return nil
	}
	if len(data.Embeddings) != len(data.IDs) {
		return fmt.Errorf("milvus insert: %d ids but %d embeddings", len(data.IDs), len(data.Embeddings))
	}

	columns := make([]column.Column, 0, len(data.Metadata)+2)
	columns = append(columns,
		column.NewColumnVarChar(PrimaryField, data.IDs),
		column.NewColumnFloatVector(VectorField, len(data.Embeddings[0]), data.Embeddings),
	)

	for name, values := range data.Metadata {
		switch v := values[0].(type) {
		case string:
			strVals := make([]string, len(values))
			for i, val := range values {
				strVals[i] = val.(string)
			}
			columns = append(columns, column.NewColumnVarChar(name, strVals))
		case int64:
			intVals := make([]int64, len(values))
			for i, val := range values {
				intVals[i] = val.(int64)
			}
			columns = append(columns, column.NewColumnInt64(name, intVals))
		default:
			return fmt.Errorf("unsupported metadata type: %T for field %s", v, name)
		}
	}

	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(c.opts.Collection, columns...)); err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(c.opts.Collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// Hit is one search row.
type Hit struct {
	ID     string
	Score  float32
	Fields map[string]any
}

// Search runs an ANN search. filter is a Milvus boolean expression; empty
// means unfiltered. Scores are cosine similarities.
func (c *Client) Search(ctx context.Context, vector []float32, topK int, filter string, outputFields []string) ([]Hit, error) {
	opt := milvusclient.NewSearchOption(
		c.opts.Collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(VectorField).
		WithSearchParam("nprobe", strconv.Itoa(c.opts.NProbe)).
		WithOutputFields(outputFields...)
	if filter != "" {
		opt = opt.WithFilter(filter)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []Hit{}, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := Hit{
			Score:  rs.Scores[i],
			Fields: rowFields(rs.Fields, i),
		}
		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			hit.ID = idCol.Data()[i]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Query returns up to ScanLimit rows matching filter.
func (c *Client) Query(ctx context.Context, filter string, outputFields []string) ([]map[string]any, error) {
	if filter == "" {
		filter = PrimaryField + ` != ""`
	}
	fields := append([]string{PrimaryField}, outputFields...)

	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(c.opts.Collection).
		WithFilter(filter).
		WithOutputFields(fields...).
		WithLimit(c.opts.ScanLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	rows := make([]map[string]any, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		rows = append(rows, rowFields(rs.Fields, i))
	}
	return rows, nil
}

// Count returns the number of entities in the collection.
func (c *Client) Count(ctx context.Context) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(c.opts.Collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

func rowFields(cols []column.Column, i int) map[string]any {
	row := make(map[string]any, len(cols))
	for _, field := range cols {
		switch col := field.(type) {
		case *column.ColumnVarChar:
			row[col.Name()] = col.Data()[i]
		case *column.ColumnInt64:
			row[col.Name()] = col.Data()[i]
		}
	}
	return row
}
