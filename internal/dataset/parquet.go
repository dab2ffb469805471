package dataset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/artevida/askql/internal/storage"
)

// TableFile locates one table's Parquet object.
type TableFile struct {
	Table     string `json:"table"`
	Key       string `json:"key"`
	RowCount  int64  `json:"row_count"`
	SizeBytes int64  `json:"size_bytes"`
	// SHA256 is the hex digest of the object body; readers verify it.
	SHA256 string `json:"sha256,omitempty"`
}

// Manifest describes a dataset published to object storage.
type Manifest struct {
	Dataset     string      `json:"dataset"`
	Seed        int64       `json:"seed"`
	GeneratedAt time.Time   `json:"generated_at"`
	PublishedAt time.Time   `json:"published_at"`
	Tables      []TableFile `json:"tables"`
}

func encodeRows[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRows reads every row of a Parquet payload written by EncodeTable.
func DecodeRows[T any](data []byte) ([]T, error) {
	reader := parquet.NewGenericReader[T](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()
	rows := make([]T, reader.NumRows())
	if len(rows) == 0 {
		return rows, nil
	}
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return rows[:n], nil
}

// EncodeTable serializes one table of the dataset to Parquet.
func (d *Dataset) EncodeTable(table string) ([]byte, int64, error) {
	var (
		data []byte
		n    int
		err  error
	)
	switch table {
	case "Activity":
		data, n, err = encodeCounted(d.Activities)
	case "Artist":
		data, n, err = encodeCounted(d.Artists)
	case "Activity_Artist":
		data, n, err = encodeCounted(d.ActivityArtists)
	case "Venue":
		data, n, err = encodeCounted(d.Venues)
	case "Event":
		data, n, err = encodeCounted(d.Events)
	case "Attendee":
		data, n, err = encodeCounted(d.Attendees)
	case "Ticket":
		data, n, err = encodeCounted(d.Tickets)
	case "Rating":
		data, n, err = encodeCounted(d.Ratings)
	default:
		return nil, 0, fmt.Errorf("unknown table %q", table)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("encode %s: %w", table, err)
	}
	return data, int64(n), nil
}

func encodeCounted[T any](rows []T) ([]byte, int, error) {
	data, err := encodeRows(rows)
	return data, len(rows), err
}

// Publish writes every table as Parquet under the dataset name and then the
// manifest. Readers only trust files listed in the manifest, so a partially
// failed publish leaves the previous manifest in effect.
func Publish(ctx context.Context, store storage.ObjectStore, name string, d *Dataset, now time.Time) (Manifest, error) {
	if store == nil {
		return Manifest{}, fmt.Errorf("object store is required")
	}
	manifest := Manifest{Dataset: name, Seed: d.Seed, GeneratedAt: d.GeneratedAt, PublishedAt: now.UTC()}
	for _, table := range Tables {
		key, err := storage.TablePath(name, table)
		if err != nil {
			return Manifest{}, err
		}
		data, rows, err := d.EncodeTable(table)
		if err != nil {
			return Manifest{}, err
		}
		sum := sha256.Sum256(data)
		digest := hex.EncodeToString(sum[:])
		opts := storage.PutOptions{
			ContentType: storage.ParquetContentType,
			Metadata: map[string]string{
				"dataset": name,
				"table":   table,
				"rows":    strconv.FormatInt(rows, 10),
				"sha256":  digest,
			},
		}
		if _, err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
			return Manifest{}, fmt.Errorf("put %s: %w", table, err)
		}
		manifest.Tables = append(manifest.Tables, TableFile{Table: table, Key: key, RowCount: rows, SizeBytes: int64(len(data)), SHA256: digest})
	}

	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("marshal manifest: %w", err)
	}
	key, err := storage.ManifestPath(name)
	if err != nil {
		return Manifest{}, err
	}
	if _, err := store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), storage.PutOptions{ContentType: storage.ManifestContentType}); err != nil {
		return Manifest{}, fmt.Errorf("put manifest: %w", err)
	}
	return manifest, nil
}

func LoadManifest(ctx context.Context, store storage.ObjectStore, name string) (Manifest, error) {
	key, err := storage.ManifestPath(name)
	if err != nil {
		return Manifest{}, err
	}
	reader, err := store.Get(ctx, key)
	if err != nil {
		return Manifest{}, fmt.Errorf("get manifest %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	var manifest Manifest
	if err := json.NewDecoder(reader).Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %q: %w", key, err)
	}
	if len(manifest.Tables) == 0 {
		return Manifest{}, fmt.Errorf("manifest %q lists no tables", key)
	}
	return manifest, nil
}
