package storage

import (
	"bytes"
	"context"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// MemoryBucket is an in-memory ObjectAPI for tests and dry runs. Objects
// can be marked denied to simulate locked resources.
type MemoryBucket struct {
	// PageSize bounds ListObjectsV2 pages; zero means 1000.
	PageSize int

	mu      sync.RWMutex
	objects map[string][]byte
	denied  map[string]bool
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		objects: make(map[string][]byte),
		denied:  make(map[string]bool),
	}
}

// Deny makes every read of key fail with AccessDenied.
func (m *MemoryBucket) Deny(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[key] = true
}

// Set stores an object directly.
func (m *MemoryBucket) Set(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = slices.Clone(data)
}

func (m *MemoryBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.denied[key] {
		return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String(key)}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (m *MemoryBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.Set(aws.ToString(in.Key), data)
	return &s3.PutObjectOutput{}, nil
}

func (m *MemoryBucket) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.RLock()
	keys := slices.Sorted(maps.Keys(m.objects))
	m.mu.RUnlock()

	prefix := aws.ToString(in.Prefix)
	after := aws.ToString(in.ContinuationToken)
	size := m.PageSize
	if size <= 0 {
		size = 1000
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) || (after != "" && k <= after) {
			continue
		}
		if len(out.Contents) == size {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = out.Contents[len(out.Contents)-1].Key
			break
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}
