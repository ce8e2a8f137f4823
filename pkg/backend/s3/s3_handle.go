package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/docftp/pkg/backend"
)

const (
	delimiter = "/"

	// metaContentKind records whether an object holds a structured document.
	metaContentKind = "content-kind"
)

type handle struct {
	client          *s3.Client
	region          string
	maxDocumentSize int64
}

func collectionPrefix(coll string) string {
	return coll + delimiter
}

func objectKey(coll, id string) string {
	return coll + delimiter + id
}

func (h *handle) ListDatabases(ctx context.Context) ([]string, error) {
	out, err := h.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, backend.NewStoreError("list databases", err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, bucket := range out.Buckets {
		names = append(names, aws.ToString(bucket.Name))
	}
	return names, nil
}

func (h *handle) ListCollections(ctx context.Context, db string) ([]string, error) {
	var colls []string

	paginator := s3.NewListObjectsV2Paginator(h.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(db),
		Delimiter: aws.String(delimiter),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, backend.NewStoreError("list collections", translate(err), db)
		}
		for _, p := range page.CommonPrefixes {
			colls = append(colls, strings.TrimSuffix(aws.ToString(p.Prefix), delimiter))
		}
	}
	return colls, nil
}

func (h *handle) ListDocuments(ctx context.Context, db, coll string) ([]backend.DocumentInfo, error) {
	prefix := collectionPrefix(coll)
	docs := []backend.DocumentInfo{}
	found := false

	paginator := s3.NewListObjectsV2Paginator(h.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(db),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, backend.NewStoreError("list documents", translate(err), db, coll)
		}
		for _, obj := range page.Contents {
			found = true
			id := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if id == "" {
				// collection marker
				continue
			}
			docs = append(docs, backend.DocumentInfo{ID: id, Size: aws.ToInt64(obj.Size)})
		}
		if len(page.CommonPrefixes) > 0 {
			found = true
		}
	}

	if !found {
		return nil, backend.NewStoreError("list documents", backend.ErrNotFound, db, coll)
	}
	return docs, nil
}

func (h *handle) FetchContent(ctx context.Context, db, coll, id string) ([]byte, error) {
	out, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(db),
		Key:    aws.String(objectKey(coll, id)),
	})
	if err != nil {
		return nil, backend.NewStoreError("fetch", translate(err), db, coll, id)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, backend.NewStoreError("fetch", err, db, coll, id)
	}
	return data, nil
}

func (h *handle) StoreContent(ctx context.Context, db, coll, id string, data []byte) error {
	for _, name := range []string{db, coll, id} {
		if err := backend.ValidateName(name); err != nil {
			return backend.NewStoreError("store", err, db, coll, id)
		}
	}
	if h.maxDocumentSize > 0 && int64(len(data)) > h.maxDocumentSize {
		return backend.NewStoreError("store", errDocumentTooLarge, db, coll, id)
	}

	if err := h.ensureBucket(ctx, db); err != nil {
		return backend.NewStoreError("store", err, db, coll, id)
	}

	kind, stored := backend.Classify(data)
	contentType := "application/octet-stream"
	if kind == backend.KindDocument {
		contentType = "application/json"
	}

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(db),
		Key:           aws.String(objectKey(coll, id)),
		Body:          bytes.NewReader(stored),
		ContentLength: aws.Int64(int64(len(stored))),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{metaContentKind: kind.String()},
	})
	if err != nil {
		return backend.NewStoreError("store", err, db, coll, id)
	}
	return nil
}

func (h *handle) CreateCollection(ctx context.Context, db, coll string) error {
	for _, name := range []string{db, coll} {
		if err := backend.ValidateName(name); err != nil {
			return backend.NewStoreError("create collection", err, db, coll)
		}
	}

	if err := h.ensureBucket(ctx, db); err != nil {
		return backend.NewStoreError("create collection", err, db, coll)
	}

	existing, err := h.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(db),
		Prefix:  aws.String(collectionPrefix(coll)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return backend.NewStoreError("create collection", translate(err), db, coll)
	}
	if aws.ToInt32(existing.KeyCount) > 0 {
		return backend.NewStoreError("create collection", backend.ErrAlreadyExists, db, coll)
	}

	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(db),
		Key:           aws.String(collectionPrefix(coll)),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return backend.NewStoreError("create collection", err, db, coll)
	}
	return nil
}

func (h *handle) Close() error {
	return nil
}

// ensureBucket creates the bucket backing a database if it does not exist.
func (h *handle) ensureBucket(ctx context.Context, bucket string) error {
	_, err := h.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) && !isErrorCode(err, "NotFound", "NoSuchBucket") {
		return err
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if h.region != "" && h.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(h.region),
		}
	}

	_, err = h.client.CreateBucket(ctx, input)
	if err != nil && !isErrorCode(err, "BucketAlreadyOwnedByYou") {
		return err
	}
	return nil
}

// translate maps S3 lookup errors onto backend sentinels.
func translate(err error) error {
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &noSuchBucket):
		return backend.ErrNotFound
	case isErrorCode(err, "NoSuchKey", "NoSuchBucket", "NotFound"):
		return backend.ErrNotFound
	}
	return err
}
