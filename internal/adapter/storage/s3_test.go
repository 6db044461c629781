package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	. "github.com/smartystreets/goconvey/convey"

	appconfig "github.com/semmidev/influx-s3/internal/config"
	"github.com/semmidev/influx-s3/internal/domain"
)

const listPage1 = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>backups</Name>
  <Prefix>influxdb/metrics</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>2</MaxKeys>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>page-2</NextContinuationToken>
  <Contents>
    <Key>influxdb/metrics_1700000000.tar.gz</Key>
    <LastModified>2023-11-14T22:13:20.000Z</LastModified>
    <ETag>"a"</ETag>
    <Size>11</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
  <Contents>
    <Key>influxdb/metrics_1700086400.tar.gz</Key>
    <LastModified>2023-11-15T22:13:20.000Z</LastModified>
    <ETag>"b"</ETag>
    <Size>12</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`

const listPage2 = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>backups</Name>
  <Prefix>influxdb/metrics</Prefix>
  <KeyCount>1</KeyCount>
  <MaxKeys>2</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>influxdb/metrics_1700172800.tar.gz</Key>
    <LastModified>2023-11-16T22:13:20.000Z</LastModified>
    <ETag>"c"</ETag>
    <Size>13</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`

const listEmpty = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>backups</Name>
  <Prefix>influxdb/none</Prefix>
  <KeyCount>0</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
</ListBucketResult>`

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>influxdb/missing.tar.gz</Key></Error>`

type fakeS3 struct {
	listCalls atomic.Int32
	object    []byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case r.Method == http.MethodGet && q.Get("list-type") == "2":
		f.listCalls.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		switch {
		case strings.HasPrefix(q.Get("prefix"), "influxdb/none"):
			fmt.Fprint(w, listEmpty)
		case q.Get("continuation-token") == "page-2":
			fmt.Fprint(w, listPage2)
		default:
			fmt.Fprint(w, listPage1)
		}
	case r.Method == http.MethodGet && r.URL.Path == "/backups/influxdb/present.tar.gz":
		w.Header().Set("Content-Length", fmt.Sprint(len(f.object)))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(f.object)-1, len(f.object)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(f.object)
	case r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, noSuchKey)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(serverURL string) *S3Storage {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(serverURL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
	})
	return newS3FromClient(client, "backups")
}

func TestS3Storage(t *testing.T) {
	Convey("Given an S3Storage backed by a fake endpoint", t, func() {
		fake := &fakeS3{object: []byte("tarball-bytes")}
		server := httptest.NewServer(fake)
		defer server.Close()

		store := newTestS3(server.URL)
		ctx := context.Background()

		So(store.Bucket(), ShouldEqual, "backups")

		Convey("List should page through every object in store order", func() {
			points, err := collect(t, store, "influxdb/metrics")

			So(err, ShouldBeNil)
			So(len(points), ShouldEqual, 3)
			So(points[0].Key, ShouldEqual, "influxdb/metrics_1700000000.tar.gz")
			So(points[0].LastModified.Equal(time.Unix(1700000000, 0)), ShouldBeTrue)
			So(points[0].Size, ShouldEqual, int64(11))
			So(points[2].Key, ShouldEqual, "influxdb/metrics_1700172800.tar.gz")
			So(fake.listCalls.Load(), ShouldEqual, 2)
		})

		Convey("List should not fetch pages nobody asked for", func() {
			for range store.List(ctx, "influxdb/metrics") {
				break
			}
			So(fake.listCalls.Load(), ShouldEqual, 1)
		})

		Convey("List of an empty prefix yields nothing", func() {
			points, err := collect(t, store, "influxdb/none")
			So(err, ShouldBeNil)
			So(points, ShouldBeEmpty)
		})

		Convey("Download", func() {
			tempDir, err := os.MkdirTemp("", "s3_test")
			So(err, ShouldBeNil)
			defer os.RemoveAll(tempDir)

			Convey("When the key exists it should write the object", func() {
				dest := filepath.Join(tempDir, "nested", "InfluxRestore.tar.gz")
				So(store.Download(ctx, "influxdb/present.tar.gz", dest), ShouldBeNil)

				content, err := os.ReadFile(dest)
				So(err, ShouldBeNil)
				So(string(content), ShouldEqual, "tarball-bytes")
			})

			Convey("When the key is missing it should fail with not found and leave no file", func() {
				dest := filepath.Join(tempDir, "InfluxRestore.tar.gz")
				err := store.Download(ctx, "influxdb/missing.tar.gz", dest)

				So(domain.IsKind(err, domain.ErrorKindNotFound), ShouldBeTrue)
				_, statErr := os.Stat(dest)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("Upload of a missing local file should fail before any request", func() {
			err := store.Upload(ctx, "/nonexistent/archive.tar.gz", "influxdb/x.tar.gz")
			So(domain.IsKind(err, domain.ErrorKindNotFound), ShouldBeTrue)
		})
	})
}

func TestResolveCredentialSource(t *testing.T) {
	Convey("Given storage credential settings", t, func() {
		Convey("A profile wins over explicit keys", func() {
			cfg := &appconfig.StorageConfig{Profile: "prod", AccessKey: "a", SecretKey: "b"}
			So(ResolveCredentialSource(cfg), ShouldEqual, CredentialsProfile)
		})

		Convey("Both keys select static credentials", func() {
			cfg := &appconfig.StorageConfig{AccessKey: "a", SecretKey: "b"}
			So(ResolveCredentialSource(cfg), ShouldEqual, CredentialsStatic)
		})

		Convey("A single key falls back to the default chain", func() {
			cfg := &appconfig.StorageConfig{AccessKey: "a"}
			So(ResolveCredentialSource(cfg), ShouldEqual, CredentialsDefault)
		})

		Convey("NewS3 records the chosen strategy", func() {
			store, err := NewS3(context.Background(), &appconfig.StorageConfig{
				Bucket:    "backups",
				Region:    "us-west-2",
				AccessKey: "a",
				SecretKey: "b",
			})
			So(err, ShouldBeNil)
			So(store.CredentialSource(), ShouldEqual, CredentialsStatic)
			So(store.Bucket(), ShouldEqual, "backups")
		})
	})
}
