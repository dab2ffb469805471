package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/artevida/askql/internal/storage"
)

func TestPutUsesPrefixContentTypeAndMetadata(t *testing.T) {
	fake := &fakeAPI{}
	store, err := newStore("askql-data", "/askql/prod/", fake)
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}

	key, err := storage.TablePath("demo", "Event")
	if err != nil {
		t.Fatalf("TablePath() error = %v", err)
	}
	info, err := store.Put(context.Background(), "/"+key, bytes.NewBufferString("PAR1"), 4, storage.PutOptions{
		Metadata: map[string]string{"table": "Event", "rows": "80"},
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.putBucket != "askql-data" {
		t.Fatalf("bucket = %q", fake.putBucket)
	}
	if fake.putKey != "askql/prod/demo/tables/event.parquet" {
		t.Fatalf("key = %q", fake.putKey)
	}
	if fake.putOpts.ContentType != storage.ParquetContentType {
		t.Fatalf("content type = %q", fake.putOpts.ContentType)
	}
	if fake.putOpts.UserMetadata["rows"] != "80" {
		t.Fatalf("user metadata = %v", fake.putOpts.UserMetadata)
	}
	if info.Key != "/"+key || info.ETag != "etag-1" {
		t.Fatalf("info = %+v", info)
	}

	if _, err := store.Put(context.Background(), "demo/manifest.json", strings.NewReader("{}"), 2, storage.PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.putOpts.ContentType != storage.ManifestContentType {
		t.Fatalf("manifest content type = %q", fake.putOpts.ContentType)
	}
}

func TestObjectKeyRejectsEscapes(t *testing.T) {
	store, err := newStore("askql-data", "datasets", &fakeAPI{})
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	for _, key := range []string{"", "  ", "../secrets.txt", "demo/../../x", ".."} {
		if _, err := store.objectKey(key); err == nil {
			t.Fatalf("objectKey(%q) should fail", key)
		}
	}
	got, err := store.objectKey("demo/./tables//event.parquet")
	if err != nil || got != "datasets/demo/tables/event.parquet" {
		t.Fatalf("objectKey() = %q, %v", got, err)
	}
}

func TestMissingObjectsMapToErrObjectNotFound(t *testing.T) {
	missing := minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	store, _ := newStore("askql-data", "", &fakeAPI{err: missing})

	if _, err := store.Get(context.Background(), "demo/manifest.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := store.Stat(context.Background(), "demo/manifest.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v", err)
	}

	denied := minio.ErrorResponse{Code: "AccessDenied", Message: "denied"}
	store, _ = newStore("askql-data", "", &fakeAPI{err: denied})
	if _, err := store.Get(context.Background(), "demo/manifest.json"); err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want a non-missing error", err)
	}
}

func TestStatLowercasesMetadataKeys(t *testing.T) {
	fake := &fakeAPI{statInfo: minio.ObjectInfo{
		Key:          "demo/tables/event.parquet",
		Size:         1024,
		ETag:         "abc",
		LastModified: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		UserMetadata: minio.StringMap{"Rows": "80", "Table": "Event"},
	}}
	store, _ := newStore("askql-data", "", fake)

	info, err := store.Stat(context.Background(), "demo/tables/event.parquet")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size != 1024 || info.Metadata["rows"] != "80" || info.Metadata["table"] != "Event" {
		t.Fatalf("info = %+v", info)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeAPI{bucketExists: false}
	store, err := newStore("askql-data", "", fake)
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	if err := store.ensureBucket(context.Background(), "eu-west-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeBucketRegion != "eu-west-1" {
		t.Fatalf("MakeBucket region = %q", fake.madeBucketRegion)
	}
}

func TestPingRequiresBucket(t *testing.T) {
	store, _ := newStore("askql-data", "", &fakeAPI{bucketExists: false})
	if err := storage.Ping(context.Background(), store); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Ping() error = %v", err)
	}
	store, _ = newStore("askql-data", "", &fakeAPI{bucketExists: true})
	if err := storage.Ping(context.Background(), store); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestConfigEndpoint(t *testing.T) {
	cases := []struct {
		cfg     Config
		host    string
		secure  bool
		wantErr bool
	}{
		{cfg: Config{Endpoint: "https://minio.example.com"}, host: "minio.example.com", secure: true},
		{cfg: Config{Endpoint: "http://minio:9000", UseSSL: true}, host: "minio:9000", secure: true},
		{cfg: Config{Endpoint: "localhost:9000"}, host: "localhost:9000"},
		{cfg: Config{Endpoint: "ftp://files.example.com"}, wantErr: true},
		{cfg: Config{Endpoint: "https://"}, wantErr: true},
		{cfg: Config{}, wantErr: true},
	}
	for _, tc := range cases {
		host, secure, err := tc.cfg.endpoint()
		if tc.wantErr {
			if err == nil {
				t.Fatalf("endpoint(%q) expected error", tc.cfg.Endpoint)
			}
			continue
		}
		if err != nil || host != tc.host || secure != tc.secure {
			t.Fatalf("endpoint(%q) = %q, %v, %v", tc.cfg.Endpoint, host, secure, err)
		}
	}
}

func TestNewStoreRequiresBucket(t *testing.T) {
	if _, err := newStore(" ", "", &fakeAPI{}); err == nil {
		t.Fatal("expected error for empty bucket")
	}
	if _, err := newStore("askql-data", "", nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}

type fakeAPI struct {
	putBucket        string
	putKey           string
	putOpts          minio.PutObjectOptions
	statInfo         minio.ObjectInfo
	bucketExists     bool
	madeBucketRegion string
	err              error
}

func (f *fakeAPI) PutObject(_ context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.putBucket = bucket
	f.putKey = key
	f.putOpts = opts
	_, _ = io.Copy(io.Discard, reader)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, _, key string, _ minio.GetObjectOptions) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeAPI) StatObject(_ context.Context, _, _ string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if f.err != nil {
		return minio.ObjectInfo{}, f.err
	}
	return f.statInfo, nil
}

func (f *fakeAPI) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeAPI) MakeBucket(_ context.Context, _ string, opts minio.MakeBucketOptions) error {
	f.madeBucketRegion = opts.Region
	return nil
}
