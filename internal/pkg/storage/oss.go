package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/audiosep_server/config"
)

// OSSStore 阿里云 OSS 存储，object key 为 {prefix}/{name}
type OSSStore struct {
	bucket *oss.Bucket
	prefix string
}

func NewOSSStore(cfg *config.OSSConfig, prefix string) (*OSSStore, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &OSSStore{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *OSSStore) objectKey(name string) string {
	if s.prefix == "" {
		return path.Base(name)
	}
	return s.prefix + "/" + path.Base(name)
}

func (s *OSSStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	name = path.Base(name)
	err := s.bucket.PutObject(s.objectKey(name), r, oss.ContentType(ContentType(path.Ext(name))), oss.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return name, nil
}

func (s *OSSStore) Delete(ctx context.Context, name string) error {
	if err := s.bucket.DeleteObject(s.objectKey(name), oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *OSSStore) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	marker := ""
	prefix := ""
	if s.prefix != "" {
		prefix = s.prefix + "/"
	}

	for {
		result, err := s.bucket.ListObjects(oss.Prefix(prefix), oss.Marker(marker), oss.MaxKeys(1000), oss.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range result.Objects {
			name := strings.TrimPrefix(obj.Key, prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			objects = append(objects, Object{Name: name, Size: obj.Size, ModTime: obj.LastModified})
		}
		if !result.IsTruncated {
			break
		}
		marker = result.NextMarker
	}
	return objects, nil
}

// ContentType 根据扩展名获取 Content-Type
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
