// Package s3source projects the objects of an S3 bucket as a
// read only tree.
//
// Common prefixes separated by a slash are directories and
// objects are files, with their size and last modification time.
// Content is fetched with ranged GetObject requests, so only the
// bytes the host hydrates are transferred.
package s3source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"

	"github.com/go-projfs/go-projfs"
)

// API is the part of the S3 client used by the source, which
// *s3.Client implements.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input,
		optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput,
		optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput,
		optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ API = (*s3.Client)(nil)

const delimiter = "/"

// Source is the bucket source.
type Source struct {
	client  API
	bucket  string
	prefix  string
	ctx     context.Context
	timeout time.Duration
}

// Option is the option that could be passed to New.
type Option func(*Source)

// WithContext sets the context every request derives from,
// which is context.Background() by default.
func WithContext(ctx context.Context) Option {
	return func(s *Source) {
		s.ctx = ctx
	}
}

// WithRequestTimeout bounds every request to the bucket,
// there is no bound by default.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Source) {
		s.timeout = timeout
	}
}

// New projects the objects of the bucket below the prefix.
func New(client API, bucket, prefix string, opts ...Option) *Source {
	prefix = strings.Trim(prefix, delimiter)
	if prefix != "" {
		prefix += delimiter
	}
	s := &Source{
		client: client,
		bucket: bucket,
		prefix: prefix,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) context() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(s.ctx)
	}
	return context.WithTimeout(s.ctx, s.timeout)
}

func (s *Source) objectKey(name string) string {
	return s.prefix + name
}

func (s *Source) dirPrefix(name string) string {
	if name == "" {
		return s.prefix
	}
	return s.prefix + name + delimiter
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isNotFound(err error) bool {
	switch errorCode(err) {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}

func (s *Source) ListDirectory(name string) ([]projfs.DirectoryEntry, error) {
	ctx, cancel := s.context()
	defer cancel()
	dirPrefix := s.dirPrefix(name)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(dirPrefix),
		Delimiter: aws.String(delimiter),
	})
	var result []projfs.DirectoryEntry
	found := name == ""
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "list %q", dirPrefix)
		}
		for _, common := range page.CommonPrefixes {
			found = true
			child := strings.TrimSuffix(
				strings.TrimPrefix(aws.ToString(common.Prefix), dirPrefix),
				delimiter)
			if child == "" {
				continue
			}
			result = append(result, projfs.DirectoryInfo{Name: child})
		}
		for _, object := range page.Contents {
			found = true
			child := strings.TrimPrefix(aws.ToString(object.Key), dirPrefix)
			// The key of the prefix itself marks an empty directory.
			if child == "" || strings.Contains(child, delimiter) {
				continue
			}
			modified := aws.ToTime(object.LastModified)
			result = append(result, projfs.FileInfo{
				Name:           child,
				Size:           aws.ToInt64(object.Size),
				Attributes:     projfs.FILE_ATTRIBUTE_READONLY,
				CreationTime:   modified,
				LastAccessTime: modified,
				LastWriteTime:  modified,
			})
		}
	}
	if !found {
		return nil, errors.Wrapf(projfs.ErrNotFound, "list %q", dirPrefix)
	}
	return result, nil
}

func (s *Source) GetDirectoryEntry(name string) (projfs.DirectoryEntry, error) {
	if name == "" {
		return projfs.DirectoryInfo{}, nil
	}
	ctx, cancel := s.context()
	defer cancel()
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
	})
	if err == nil {
		modified := aws.ToTime(head.LastModified)
		return projfs.FileInfo{
			Name:           path.Base(name),
			Size:           aws.ToInt64(head.ContentLength),
			Attributes:     projfs.FILE_ATTRIBUTE_READONLY,
			CreationTime:   modified,
			LastAccessTime: modified,
			LastWriteTime:  modified,
		}, nil
	}
	if !isNotFound(err) {
		return nil, errors.Wrapf(err, "head %q", s.objectKey(name))
	}

	// No such object, it may still be a prefix or differ in case
	// from the keys.
	return s.lookupFold(name)
}

// lookupFold resolves the path one component at a time against
// the listing of its parent, comparing names case-insensitively.
func (s *Source) lookupFold(name string) (projfs.DirectoryEntry, error) {
	var (
		current string
		entry   projfs.DirectoryEntry
	)
	for _, component := range strings.Split(name, delimiter) {
		if entry != nil && !entry.BasicInfo().IsDirectory {
			return nil, errors.Wrapf(projfs.ErrNotFound, "lookup %q", name)
		}
		entries, err := s.ListDirectory(current)
		if err != nil {
			return nil, errors.Wrapf(err, "lookup %q", name)
		}
		entry = nil
		for _, candidate := range entries {
			if strings.EqualFold(candidate.EntryName(), component) {
				entry = candidate
				break
			}
		}
		if entry == nil {
			return nil, errors.Wrapf(projfs.ErrNotFound, "lookup %q", name)
		}
		current = path.Join(current, entry.EntryName())
	}
	return entry, nil
}

type objectReader struct {
	io.Reader
	body    io.Closer
	release context.CancelFunc
}

func (r *objectReader) Close() error {
	defer r.release()
	return r.body.Close()
}

func (s *Source) StreamFileContent(
	name string, offset int64, length int,
) (io.Reader, error) {
	if !projfs.InRange(offset, length, math.MaxInt64) {
		return nil, errors.Wrapf(projfs.ErrOutOfRange,
			"read %q at %d+%d", name, offset, length)
	}
	if length == 0 {
		return bytes.NewReader(nil), nil
	}
	key := s.objectKey(name)
	ctx, cancel := s.context()
	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range: aws.String(fmt.Sprintf(
			"bytes=%d-%d", offset, offset+int64(length)-1)),
	})
	if err != nil {
		cancel()
		switch {
		case isNotFound(err):
			return nil, errors.Wrapf(projfs.ErrNotFound, "get %q: %v", key, err)
		case errorCode(err) == "InvalidRange":
			return nil, errors.Wrapf(projfs.ErrOutOfRange, "get %q: %v", key, err)
		}
		return nil, errors.Wrapf(err, "get %q", key)
	}
	// A range overlapping the end of the object is truncated.
	if object.ContentLength != nil && *object.ContentLength < int64(length) {
		_ = object.Body.Close()
		cancel()
		return nil, errors.Wrapf(projfs.ErrOutOfRange,
			"get %q at %d+%d: only %d bytes", key, offset, length,
			*object.ContentLength)
	}
	return &objectReader{
		Reader:  io.LimitReader(object.Body, int64(length)),
		body:    object.Body,
		release: cancel,
	}, nil
}

var (
	_ projfs.Source                     = (*Source)(nil)
	_ projfs.BehaviourGetDirectoryEntry = (*Source)(nil)
)
